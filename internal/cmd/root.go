// Package cmd wires the CLI entrypoints.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AP2611/Chakra-final/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "chakra",
	Short: "Iterative refinement engine for model-generated solutions",
	Long: `Chakra runs model outputs through repeated generate, critique, improve,
score rounds until the quality score plateaus, streaming typed progress
events to clients and persisting the best solutions for recall on
similar future tasks.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/chakra")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHAKRA")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CHAKRA_OLLAMA_MODEL for ollama.model
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
