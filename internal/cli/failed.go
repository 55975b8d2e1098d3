package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List roots whose last harvest failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := newApp(ctx, cmd, control.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		failed, err := app.FailedRoots(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "ROOT\tATTEMPTS\tFAILED AT\tRUN\tERROR")
		for _, f := range failed {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				f.RootID, f.Attempts, f.FailedAt.Format(time.RFC3339), f.RunID, f.Error)
		}
		return w.Flush()
	},
}

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Harvest every root in the failure ledger again",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := newApp(ctx, cmd, control.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		sum, err := app.RetryFailed(ctx)
		printSummary(cmd, sum)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d of %d roots failed again", sum.Failed, sum.Roots)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(failedCmd)
	rootCmd.AddCommand(retryFailedCmd)
}
