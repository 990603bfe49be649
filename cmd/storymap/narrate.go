package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"storymap/pkg/narration"
)

func newGenerateAudioCommand(opts *rootOptions) *cobra.Command {
	var (
		force   bool
		eventID string
	)
	cmd := &cobra.Command{
		Use:   "generate-audio <story-id>",
		Short: "Synthesize narration for a story's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, opts.ConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.narration.Generate(ctx, args[0], narration.Options{Force: force, Only: eventID})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Status == narration.StatusFailed || res.Status == narration.StatusCritical {
				return fmt.Errorf("audio generation %s", res.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate events that already have audio")
	cmd.Flags().StringVar(&eventID, "event", "", "only narrate this event id")
	return cmd
}
