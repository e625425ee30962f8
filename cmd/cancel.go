package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active matching run for an event",
	Run: func(cmd *cobra.Command, _ []string) {
		cancel(cmd)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().StringP("event", "e", "", "event id to cancel matching for")

	cancelCmd.MarkFlagRequired("event")
}

// cancel flags the active run as cancelled in the store. A running matcher
// notices the flag between attendees and stops; matches stored so far are
// kept.
func cancel(cmd *cobra.Command) {
	ctx := context.Background()

	app, err := newApplication(ctx, cmd, false)
	if err != nil {
		log.Fatalf("wiring the application: %s", err)
	}
	logger := app.logger

	eventID := cmd.Flag("event").Value.String()

	app.scheduler.CancelQueued(eventID)

	cancelled, err := app.runs.CancelActive(ctx, eventID)
	if err != nil {
		logger.Fatal("cancelling matching run", zap.Error(err))
	}

	if !cancelled {
		logger.Info("no active matching run to cancel", zap.String("event_id", eventID))
		return
	}

	logger.Info("matching run cancelled", zap.String("event_id", eventID))
}
