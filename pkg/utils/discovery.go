package utils

import (
	"fmt"

	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
	"github.com/Krayangel/ARSW-LAB03/pkg/simulation"
)

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Name   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations lists the simulations of the default registry
func DiscoverSimulations() ([]SimulationInfo, error) {
	return DiscoverIn(simulation.DefaultRegistry)
}

// DiscoverIn lists every simulation registered in r with its descriptor.
// Simulations without one get a descriptor built from Name and Description.
func DiscoverIn(r *simulation.Registry) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	for _, name := range r.List() {
		sim, err := r.Get(name)
		if err != nil {
			// Log error but continue scanning
			logger.Warnf("failed to load %s: %v", name, err)
			continue
		}

		cfg := simulation.SimulationConfig{
			Name:        name,
			Description: sim.Description(),
		}
		if d, ok := sim.(simulation.Describer); ok {
			cfg = d.Descriptor()
		}
		simulations = append(simulations, SimulationInfo{Name: name, Config: cfg})
	}

	return simulations, nil
}

// FindSimulation returns the descriptor of the simulation registered as name
func FindSimulation(name string) (*SimulationInfo, error) {
	infos, err := DiscoverSimulations()
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Name == name {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("simulation configuration not found for %s", name)
}
