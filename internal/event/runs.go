package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunStore tracks the lifecycle of matching runs for status polling and
// cooperative cancellation.
type RunStore interface {
	Create(ctx context.Context, eventID string) (*Run, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
	// CancelActive flags the event's queued or running run as cancelled.
	// Returns false when no such run exists.
	CancelActive(ctx context.Context, eventID string) (bool, error)
	// UpdateProgress records processed/total counts. Progress is capped at
	// 99 while the run is still going so pollers never see a finished bar
	// on an unfinished run.
	UpdateProgress(ctx context.Context, id string, processed, total int) error
	// Latest returns the newest run for the event, or nil when the event
	// has never been matched.
	Latest(ctx context.Context, eventID string) (*Run, error)
	IsCancelled(ctx context.Context, id string) (bool, error)
}

type runStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRunStore(db *gorm.DB, log *zap.Logger) RunStore {
	return &runStore{
		db:  db,
		log: log.With(zap.String("store", "matching_runs")),
	}
}

func (s *runStore) Create(ctx context.Context, eventID string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Status:    RunStatusQueued,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *runStore) MarkRunning(ctx context.Context, id string) error {
	return s.updateFields(ctx, id, map[string]interface{}{
		"status": RunStatusRunning,
	})
}

func (s *runStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.updateFields(ctx, id, map[string]interface{}{
		"status":       RunStatusCompleted,
		"progress":     100,
		"completed_at": now,
	})
}

func (s *runStore) MarkFailed(ctx context.Context, id, message string) error {
	return s.updateFields(ctx, id, map[string]interface{}{
		"status":        RunStatusFailed,
		"error_message": message,
	})
}

func (s *runStore) CancelActive(ctx context.Context, eventID string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&Run{}).
		Where("event_id = ? AND status IN ?", eventID, []string{RunStatusQueued, RunStatusRunning}).
		Updates(map[string]interface{}{
			"status":       RunStatusCancelled,
			"cancelled_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *runStore) UpdateProgress(ctx context.Context, id string, processed, total int) error {
	progress := 0
	if total > 0 {
		progress = processed * 100 / total
	}
	if progress > 99 {
		progress = 99
	}
	return s.db.WithContext(ctx).
		Model(&Run{}).
		Where("id = ? AND status = ?", id, RunStatusRunning).
		Updates(map[string]interface{}{
			"progress":        progress,
			"processed_count": processed,
			"total_count":     total,
		}).Error
}

func (s *runStore) Latest(ctx context.Context, eventID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *runStore) IsCancelled(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Run{}).
		Where("id = ? AND status = ?", id, RunStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *runStore) updateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).
		Model(&Run{}).
		Where("id = ?", id).
		Updates(updates).Error
}
