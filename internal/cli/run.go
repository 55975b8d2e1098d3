package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/harvesting/dispatch"
)

var (
	rootsFile string
	playlists []string
	dryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run [video-id...]",
	Short: "Harvest the comments of the given videos",
	Long: `Harvest every comment thread, with all replies, of the given videos.
Videos can be passed as arguments, read from --roots-file, or taken from
--playlist. Roots are processed one at a time in input order.`,
	RunE: runHarvest,
}

func init() {
	runCmd.Flags().StringVar(&rootsFile, "roots-file", "", "file with video ids (JSON array or one per line)")
	runCmd.Flags().StringSliceVar(&playlists, "playlist", nil, "playlist id whose videos are harvested (repeatable)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep batches in memory instead of writing them")
	rootCmd.AddCommand(runCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := newApp(ctx, cmd, control.Options{DryRun: dryRun})
	if err != nil {
		return err
	}
	defer app.Close()

	roots := append([]string{}, args...)
	if rootsFile != "" {
		fromFile, err := LoadRoots(rootsFile)
		if err != nil {
			return err
		}
		roots = append(roots, fromFile...)
	}
	if len(playlists) > 0 {
		videos, err := app.ExpandPlaylists(ctx, playlists)
		if err != nil {
			return fmt.Errorf("failed to expand playlists: %w", err)
		}
		roots = append(roots, videos...)
	}
	if len(roots) == 0 {
		return errors.New("no video ids given")
	}

	sum, err := app.Run(ctx, roots)
	printSummary(cmd, sum)
	if err != nil {
		slog.Warn("Run interrupted", "error", err)
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d roots failed", sum.Failed, sum.Roots)
	}
	return nil
}

func printSummary(cmd *cobra.Command, sum dispatch.Summary) {
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d/%d roots ok, %d failed, %d threads in %d batches\n",
		sum.RunID, sum.Succeeded, sum.Roots, sum.Failed, sum.Threads, sum.Batches)
}
