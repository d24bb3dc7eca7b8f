package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "leasectl",
		Short:        "Lease generation and lifecycle tooling",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		MigrateCmd(),
		PreviewCmd(),
		ExpireCmd(),
		EventsCmd(),
		TokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
