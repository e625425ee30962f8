package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmony-community/harmony-matcher/internal/queue"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Regenerate all matches? Existing matches for this event will be replaced",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate matches for every attendee of an event",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("event", "e", "", "event id to match")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before regenerating matches")

	runCmd.MarkFlagRequired("event")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	app, err := newApplication(ctx, cmd, true)
	if err != nil {
		log.Fatalf("wiring the application: %s", err)
	}
	logger := app.logger

	logger.Info("starting the harmony-matcher", zap.String("version", version))

	eventID := cmd.Flag("event").Value.String()

	roster, err := app.attendees.ListByEvent(ctx, eventID)
	if err != nil {
		logger.Fatal("listing attendees", zap.Error(err))
	}

	if len(roster) < 2 {
		logger.Info("exiting",
			zap.String("reason", "need at least 2 attendees to generate matches"),
			zap.Int("attendees", len(roster)),
		)
		return
	}

	logger.Info("event roster loaded",
		zap.String("event_id", eventID),
		zap.Int("attendees", len(roster)),
	)

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	ticket, err := app.scheduler.Enqueue(ctx, eventID, func(ctx context.Context) error {
		return app.orchestrator.RunFullMatching(ctx, eventID)
	})
	if err != nil {
		if errors.Is(err, queue.ErrMatchingInProgress) {
			logger.Fatal("matching is already in progress for this event", zap.String("event_id", eventID))
		}
		logger.Fatal("enqueueing matching job", zap.Error(err))
	}

	if err := ticket.Wait(ctx); err != nil {
		if errors.Is(err, queue.ErrCancelled) {
			logger.Info("exiting", zap.String("reason", "matching job was cancelled before it started"))
			return
		}
		logger.Fatal("matching run failed", zap.Error(err))
	}

	reportRun(ctx, app, eventID)
}

func reportRun(ctx context.Context, app *application, eventID string) {
	run, err := app.runs.Latest(ctx, eventID)
	if err != nil || run == nil {
		app.logger.Warn("could not load run summary", zap.Error(err))
		return
	}

	app.logger.Info("matching finished",
		zap.String("event_id", eventID),
		zap.String("status", run.Status),
		zap.Int("progress", run.Progress),
		zap.Int("processed", run.ProcessedCount),
		zap.Int("total", run.TotalCount),
	)
}
