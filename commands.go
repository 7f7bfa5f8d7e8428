package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/llehouerou/cassette/internal/catalog"
)

// withStore loads the configuration, sets up logging and opens the catalog
// for a one-shot command.
func withStore(ctx context.Context, flags *rootFlags, fn func(*catalog.Store) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	closer, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	dbPath, err := cfg.DBPath()
	if err != nil {
		return errors.Wrap(err, "resolve catalog path")
	}
	store, err := catalog.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSeedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [seed file]",
		Short: "Replace the catalog with the tracks of a YAML seed file",
		Long: `Replace the whole catalog with the tracks listed in a YAML seed file:

  tracks:
    - title: Morning Light
      source: /music/morning.flac
      artwork: /music/cover.jpg
    - source: https://example.com/stream.mp3

Without an argument the built-in demo tracks are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := catalog.DefaultSeeds()
			if len(args) == 1 {
				var err error
				if seeds, err = catalog.LoadSeedFile(args[0]); err != nil {
					return err
				}
			}
			return withStore(cmd.Context(), flags, func(s *catalog.Store) error {
				if err := s.ResetAndSeed(cmd.Context(), seeds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d tracks\n", len(seeds))
				return nil
			})
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), flags, func(s *catalog.Store) error {
				tracks, err := s.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				return printTracks(cmd.OutOrStdout(), tracks)
			})
		},
	}
}

func printTracks(w io.Writer, tracks []catalog.Track) error {
	if len(tracks) == 0 {
		_, err := fmt.Fprintln(w, "Catalog is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSOURCE\tARTWORK")
	for _, t := range tracks {
		artwork := t.Artwork
		if artwork == "" {
			artwork = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Title, t.Source, artwork)
	}
	return tw.Flush()
}

func newScanCmd(flags *rootFlags) *cobra.Command {
	var (
		output  string
		workers int
		apply   bool
	)

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Build a seed file from the audio files in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := catalog.ScanDir(cmd.Context(), args[0], catalog.ScanOptions{
				Workers:  workers,
				Progress: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return errors.Newf("no audio files found in %s", args[0])
			}

			if output != "" {
				if err := catalog.WriteSeedFile(output, seeds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tracks to %s\n", len(seeds), output)
			}
			if !apply {
				if output == "" {
					return catalog.EncodeSeeds(cmd.OutOrStdout(), seeds)
				}
				return nil
			}
			return withStore(cmd.Context(), flags, func(s *catalog.Store) error {
				if err := s.ResetAndSeed(cmd.Context(), seeds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d tracks\n", len(seeds))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the seed file here (default: print it)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel tag readers (default: number of CPUs)")
	cmd.Flags().BoolVar(&apply, "apply", false, "also replace the catalog with the scanned tracks")
	return cmd
}
