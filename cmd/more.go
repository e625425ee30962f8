package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmony-community/harmony-matcher/internal/queue"
)

var moreCmd = &cobra.Command{
	Use:   "more",
	Short: "Generate an additional batch of matches for one attendee",
	Run: func(cmd *cobra.Command, _ []string) {
		more(cmd)
	},
}

func init() {
	rootCmd.AddCommand(moreCmd)

	moreCmd.Flags().StringP("attendee", "a", "", "attendee id to generate more matches for")
	moreCmd.Flags().Int("batch", 0, "batch number for the new matches (default: next unused batch)")

	moreCmd.MarkFlagRequired("attendee")
}

func more(cmd *cobra.Command) {
	ctx := context.Background()

	app, err := newApplication(ctx, cmd, true)
	if err != nil {
		log.Fatalf("wiring the application: %s", err)
	}
	logger := app.logger

	attendeeID := cmd.Flag("attendee").Value.String()

	attendee, err := app.attendees.Get(ctx, attendeeID)
	if err != nil {
		logger.Fatal("loading attendee", zap.Error(err))
	}
	if attendee == nil {
		logger.Fatal("attendee not found", zap.String("attendee_id", attendeeID))
	}

	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		logger.Fatal("reading batch flag", zap.Error(err))
	}
	if batch <= 0 {
		batch, err = nextBatchNumber(ctx, app, attendeeID)
		if err != nil {
			logger.Fatal("computing next batch number", zap.Error(err))
		}
	}

	logger.Info("generating more matches",
		zap.String("attendee_id", attendeeID),
		zap.String("attendee_name", attendee.Name),
		zap.Int("batch", batch),
	)

	ticket, err := app.scheduler.Enqueue(ctx, attendee.EventID, func(ctx context.Context) error {
		return app.orchestrator.RunIncrementalMatching(ctx, attendeeID, batch)
	})
	if err != nil {
		if errors.Is(err, queue.ErrMatchingInProgress) {
			logger.Fatal("matching is already in progress for this event", zap.String("event_id", attendee.EventID))
		}
		logger.Fatal("enqueueing matching job", zap.Error(err))
	}

	if err := ticket.Wait(ctx); err != nil {
		if errors.Is(err, queue.ErrCancelled) {
			logger.Info("exiting", zap.String("reason", "matching job was cancelled before it started"))
			return
		}
		logger.Fatal("incremental matching failed", zap.Error(err))
	}

	matches, err := app.matches.ListForAttendee(ctx, attendeeID)
	if err != nil {
		logger.Warn("could not load match summary", zap.Error(err))
		return
	}

	fresh := 0
	for _, m := range matches {
		if m.BatchNumber == batch {
			fresh++
		}
	}

	logger.Info("incremental matching finished",
		zap.String("attendee_id", attendeeID),
		zap.Int("batch", batch),
		zap.Int("new_matches", fresh),
		zap.Int("total_matches", len(matches)),
	)
}

// nextBatchNumber returns one past the highest batch already stored for the
// attendee, starting at 2 so fresh batches never collide with the full run.
func nextBatchNumber(ctx context.Context, app *application, attendeeID string) (int, error) {
	matches, err := app.matches.ListForAttendee(ctx, attendeeID)
	if err != nil {
		return 0, err
	}

	next := 2
	for _, m := range matches {
		if m.BatchNumber >= next {
			next = m.BatchNumber + 1
		}
	}
	return next, nil
}
