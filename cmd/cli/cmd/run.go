package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Krayangel/ARSW-LAB03/pkg/config"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
	"github.com/Krayangel/ARSW-LAB03/pkg/simulation"
	"github.com/Krayangel/ARSW-LAB03/pkg/utils"

	// Import simulations to register them
	_ "github.com/Krayangel/ARSW-LAB03/cmd/highlander"
)

// defaultSimulation is run when -s is omitted and no terminal is attached.
const defaultSimulation = "highlander"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation for a fixed duration, pausing every report interval to
print a consistent snapshot, or drive it step by step with --interactive.`,
	RunE: runSimulation,
}

// settingFlags maps run flags to settings keys.
var settingFlags = map[string]string{
	"count":           config.KeyCount,
	"mode":            config.KeyFightMode,
	"health":          config.KeyHealth,
	"damage":          config.KeyDamage,
	"duration":        config.KeyDuration,
	"report-interval": config.KeyReportInterval,
	"turn-delay":      config.KeyTurnDelay,
	"pause-timeout":   config.KeyPauseTimeout,
	"shutdown-grace":  config.KeyShutdownGrace,
	"stop-on-winner":  config.KeyStopOnWinner,
}

func init() {
	defaults := config.Default()

	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().IntP("count", "n", defaults.Count, "number of immortals")
	runCmd.Flags().StringP("mode", "m", defaults.FightMode, "fight protocol (ordered, naive, trylock)")
	runCmd.Flags().Int("health", defaults.Health, "initial health per immortal")
	runCmd.Flags().Int("damage", defaults.Damage, "damage per fight")
	runCmd.Flags().DurationP("duration", "d", defaults.Duration, "how long to run (0 runs until interrupted)")
	runCmd.Flags().Duration("report-interval", defaults.ReportInterval, "pause and snapshot every interval (0 disables)")
	runCmd.Flags().Duration("turn-delay", defaults.TurnDelay, "pause between two turns of one immortal")
	runCmd.Flags().Duration("pause-timeout", defaults.PauseTimeout, "how long a pause waits for every immortal to park")
	runCmd.Flags().Duration("shutdown-grace", defaults.ShutdownGrace, "how long stop waits before abandoning blocked immortals")
	runCmd.Flags().Bool("stop-on-winner", defaults.StopOnWinner, "end the run once a single immortal is left")
	runCmd.Flags().StringP("profile", "p", "", "saved profile to start from")
	runCmd.Flags().String("report-out", "", "write a YAML report of the run to this file")
	runCmd.Flags().BoolP("interactive", "i", false, "drive the run from a menu (needs a terminal)")
	runCmd.Flags().Bool("prompt", false, "prompt for every parameter before running")

	for flag, key := range settingFlags {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	simName, err := selectSimulation(cmd)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	info, err := utils.FindSimulation(simName)
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	settings, err := resolveSettings(cmd)
	if err != nil {
		return fmt.Errorf("failed to resolve settings: %w", err)
	}

	params := settings.Params()
	if prompt, _ := cmd.Flags().GetBool("prompt"); prompt {
		if !isTerminal() {
			return fmt.Errorf("--prompt needs an interactive terminal")
		}
		answers, err := utils.PromptForParameters(info.Config.Parameters, params)
		if err != nil {
			return fmt.Errorf("failed to get parameters: %w", err)
		}
		for k, v := range answers {
			params[k] = v
		}
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("Received interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		cancel()
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	logger.LogKeyValue("Immortals", params[config.KeyCount])
	logger.LogKeyValue("Mode", params[config.KeyFightMode])
	logger.LogKeyValue("Health / damage", fmt.Sprintf("%v / %v", params[config.KeyHealth], params[config.KeyDamage]))

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive {
		is, ok := sim.(simulation.Interactive)
		if !ok {
			return fmt.Errorf("simulation %s cannot be run interactively", simName)
		}
		if !isTerminal() {
			return fmt.Errorf("--interactive needs an interactive terminal")
		}
		if err := runInteractive(ctx, is); err != nil {
			return fmt.Errorf("simulation failed: %w", err)
		}
	} else if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if out, _ := cmd.Flags().GetString("report-out"); out != "" {
		if err := writeReport(sim, out); err != nil {
			return err
		}
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// resolveSettings layers, lowest first: defaults, config file and
// environment, the chosen profile, and flags set on the command line.
func resolveSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings := config.FromViper(viper.GetViper())

	profileName, _ := cmd.Flags().GetString("profile")
	if profileName != "" {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return nil, err
		}
		profile, ok := profiles.Find(profileName)
		if !ok {
			return nil, fmt.Errorf("profile %s not found", profileName)
		}
		settings = profile
		config.MergeWithCLIOverrides(settings, changedSettingFlags(cmd))
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func changedSettingFlags(cmd *cobra.Command) map[string]interface{} {
	overrides := make(map[string]interface{})
	flags := cmd.Flags()
	for flag, key := range settingFlags {
		if !flags.Changed(flag) {
			continue
		}
		switch f := flags.Lookup(flag); f.Value.Type() {
		case "int":
			v, _ := flags.GetInt(flag)
			overrides[key] = v
		case "duration":
			v, _ := flags.GetDuration(flag)
			overrides[key] = v
		case "bool":
			v, _ := flags.GetBool(flag)
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	}
	return overrides
}

// runInteractive starts the simulation and loops over its menu until an
// action ends the session, the user interrupts or ctx ends.
func runInteractive(ctx context.Context, sim simulation.Interactive) error {
	if err := sim.Start(ctx); err != nil {
		return err
	}

	actions := sim.Actions()
	for {
		if ctx.Err() != nil {
			return sim.Stop()
		}

		var action string
		prompt := &survey.Select{
			Message: "Action:",
			Options: actions,
		}
		if err := survey.AskOne(prompt, &action); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				logger.Warn("Interrupted, stopping simulation...")
				return sim.Stop()
			}
			_ = sim.Stop()
			return err
		}

		done, err := sim.Do(ctx, action)
		if err != nil {
			logger.Errorf("%s failed: %v", action, err)
		}
		if done {
			return nil
		}
	}
}

type reportWriter interface {
	WriteReport(path string) error
}

func writeReport(sim simulation.Simulation, path string) error {
	w, ok := sim.(reportWriter)
	if !ok {
		return fmt.Errorf("simulation %s does not write reports", sim.Name())
	}
	err := logger.WithSpinner("Writing report to "+path, func() error {
		return w.WriteReport(path)
	})
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func selectSimulation(cmd *cobra.Command) (string, error) {
	// Check if simulation is specified via flag
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return "", err
	}

	switch {
	case len(simInfos) == 0:
		return "", fmt.Errorf("no simulations found")
	case len(simInfos) == 1:
		return simInfos[0].Name, nil
	case !isTerminal():
		return defaultSimulation, nil
	}

	// Build options for selection
	options := make([]string, len(simInfos))
	descriptions := make(map[string]string)

	for i, info := range simInfos {
		options[i] = info.Name
		descriptions[info.Name] = info.Config.Description
	}

	// Interactive selection
	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: options,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}
