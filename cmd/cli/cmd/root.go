package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Krayangel/ARSW-LAB03/pkg/config"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

// EnvPrefix prefixes every environment variable viper reads.
const EnvPrefix = "IMMORTALS"

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "immortals",
	Short: "Immortals concurrency simulation CLI",
	Long: `Immortals runs a population of concurrent agents that fight each other
under explicit locking, with a global pause barrier for consistent snapshots.
Compare the ordered, naive and trylock fight protocols and watch the health
pool shrink fight by fight.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.immortals/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(profileCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	// Configure logger based on flags
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		if dir, err := config.Dir(); err == nil {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(filepath.Join("$HOME", config.DirName))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		logger.Debugf("using config file %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		logger.Warnf("could not read config file %s: %v", cfgFile, err)
	}
}
