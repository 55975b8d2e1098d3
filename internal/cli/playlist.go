package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist <playlist-id>...",
	Short: "Print the video ids of playlists",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := newApp(ctx, cmd, control.Options{DryRun: true})
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.ExpandPlaylists(ctx, args)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playlistCmd)
}
