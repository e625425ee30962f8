package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest matching run for an event",
	Run: func(cmd *cobra.Command, _ []string) {
		status(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("event", "e", "", "event id to inspect")

	statusCmd.MarkFlagRequired("event")
}

func status(cmd *cobra.Command) {
	ctx := context.Background()

	app, err := newApplication(ctx, cmd, false)
	if err != nil {
		log.Fatalf("wiring the application: %s", err)
	}
	logger := app.logger

	eventID := cmd.Flag("event").Value.String()

	run, err := app.runs.Latest(ctx, eventID)
	if err != nil {
		logger.Fatal("loading latest run", zap.Error(err))
	}
	if run == nil {
		logger.Info("no matching run found for event", zap.String("event_id", eventID))
		return
	}

	fields := []zap.Field{
		zap.String("event_id", eventID),
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Int("progress", run.Progress),
		zap.Int("processed", run.ProcessedCount),
		zap.Int("total", run.TotalCount),
		zap.Time("started_at", run.StartedAt),
	}
	if run.CompletedAt != nil {
		fields = append(fields, zap.Time("completed_at", *run.CompletedAt))
	}
	if run.ErrorMessage != "" {
		fields = append(fields, zap.String("error", run.ErrorMessage))
	}

	logger.Info("latest matching run", fields...)
}
