package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llehouerou/cassette/internal/stderr"
)

type rootFlags struct {
	configPath string
	logLevel   string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "cassette",
		Short:         "Play a track catalog in the terminal",
		Long:          `A single-screen terminal audio player for local files, http(s), s3:// and gs:// sources.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlayer(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: ~/.config/cassette/config.toml, ./config.toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.dbPath, "db", "", "catalog database path")

	root.AddCommand(
		newSeedCmd(flags),
		newListCmd(flags),
		newScanCmd(flags),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		stderr.WriteOriginal(fmt.Sprintf("Error: %v\n", err))
		os.Exit(1)
	}
}
