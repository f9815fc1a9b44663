package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "feaout",
		Short: "feaout - convergence history and solution output for structural FEA runs",
		Long: `feaout builds the field catalogs of a structural analysis, loads solver state
into history and volume records, and writes them to the screen, CSV, JSON lines,
SQLite, Arrow and Prometheus sinks.

Recorded solver traces can be replayed, or followed while a solver writes them.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feaout v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newSynthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
