package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	var actor string

	rootCmd := &cobra.Command{
		Use:   "moto-yard",
		Short: "Motorcycle yard occupancy service",
		Long: `moto-yard tracks which slots of a motorcycle yard are free or occupied and
registers entries and exits against a shared placement store.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&actor, "actor", envActor(), "Staff registration number recorded on shell movements")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newShellCmd(&actor))
	rootCmd.AddCommand(newBothCmd(&actor))
	rootCmd.AddCommand(newSeedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envActor() string {
	if v := os.Getenv("MOTO_YARD_ACTOR"); v != "" {
		return v
	}
	return "console"
}
