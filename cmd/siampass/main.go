package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "siampass",
	Short:         "Siam Pass: a local guide, travel recommendations and an AR stamp passport for Thailand",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(arCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
