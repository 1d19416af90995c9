package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/cmd/inspect"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/cmd/serve"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "radikal",
		Short: "Weld radiograph defect inspection service",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings),
		inspect.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Inference.URL, "sidecar", viper.GetString("inference.url"), "Base URL of the inference sidecar")
	rootCmd.PersistentFlags().Float64VarP(&settings.Inference.ConfidenceThreshold, "threshold", "t", viper.GetFloat64("inference.confidencethreshold"), "Minimum detection confidence, value between 0.0 and 1.0")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
