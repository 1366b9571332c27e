package simulation

import "context"

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until it finishes, is stopped or ctx ends
	Run(ctx context.Context) error

	// Stop gracefully shuts down the simulation
	Stop() error
}

// Interactive is implemented by simulations that can be driven step by step
// from a menu instead of running on their own schedule.
type Interactive interface {
	Simulation

	// Start launches the simulation without blocking.
	Start(ctx context.Context) error

	// Actions lists the menu entries, in display order.
	Actions() []string

	// Do performs one action. done reports that the session is over.
	Do(ctx context.Context, action string) (done bool, err error)
}

// Describer is implemented by simulations that carry their own descriptor.
type Describer interface {
	Descriptor() SimulationConfig
}
