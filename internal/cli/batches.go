package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
)

var findThread string

var batchesCmd = &cobra.Command{
	Use:   "batches <video-id>",
	Short: "Show the stored batches of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := newApp(ctx, cmd, control.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		if findThread != "" {
			idx, err := app.FindThread(ctx, args[0], findThread)
			if err != nil {
				return err
			}
			if idx < 0 {
				return fmt.Errorf("thread %s not found in %s", findThread, args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "thread %s is in batch %d\n", findThread, idx)
			return nil
		}

		infos, err := app.Batches(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "BATCH\tTHREADS\tWRITTEN")
		for _, b := range infos {
			_, _ = fmt.Fprintf(w, "%d\t%d\t%s\n", b.Index, b.ThreadCount, b.WrittenAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	batchesCmd.Flags().StringVar(&findThread, "thread", "", "print the batch holding this thread id instead of the table")
	rootCmd.AddCommand(batchesCmd)
}
