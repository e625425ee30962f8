package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MatchStore persists and queries directed match edges.
type MatchStore interface {
	// Clear deletes every match row for the event. Used before a full
	// regeneration, never for incremental batches.
	Clear(ctx context.Context, eventID string) error
	// Insert appends one directed edge. Duplicate (attendee, matched)
	// pairs may exist across batches; there is no unique constraint.
	Insert(ctx context.Context, m *Match) error
	// RecomputeMutualFlags rewrites the mutual flag for every row of the
	// event from the full edge set. Idempotent.
	RecomputeMutualFlags(ctx context.Context, eventID string) error
	// ListForAttendee returns matches in stable display order.
	ListForAttendee(ctx context.Context, attendeeID string) ([]*Match, error)
	// MatchedAttendeeIDs returns every attendee already proposed to the
	// subject, across all batches.
	MatchedAttendeeIDs(ctx context.Context, attendeeID string) ([]string, error)
}

type matchStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewMatchStore(db *gorm.DB, log *zap.Logger) MatchStore {
	return &matchStore{
		db:  db,
		log: log.With(zap.String("store", "matches")),
	}
}

func (s *matchStore) Clear(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&Match{}).Error
}

func (s *matchStore) Insert(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.BatchNumber < 1 {
		m.BatchNumber = 1
	}
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *matchStore) RecomputeMutualFlags(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(`
			UPDATE matches SET mutual = ?
			WHERE event_id = ? AND EXISTS (
				SELECT 1 FROM matches m2
				WHERE m2.event_id = matches.event_id
				  AND m2.attendee_id = matches.matched_attendee_id
				  AND m2.matched_attendee_id = matches.attendee_id
			)`, true, eventID).Error
		if err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE matches SET mutual = ?
			WHERE event_id = ? AND NOT EXISTS (
				SELECT 1 FROM matches m2
				WHERE m2.event_id = matches.event_id
				  AND m2.attendee_id = matches.matched_attendee_id
				  AND m2.matched_attendee_id = matches.attendee_id
			)`, false, eventID).Error
	})
}

func (s *matchStore) ListForAttendee(ctx context.Context, attendeeID string) ([]*Match, error) {
	var out []*Match
	err := s.db.WithContext(ctx).
		Where("attendee_id = ?", attendeeID).
		Order("batch_number ASC, score DESC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *matchStore) MatchedAttendeeIDs(ctx context.Context, attendeeID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&Match{}).
		Where("attendee_id = ?", attendeeID).
		Distinct().
		Pluck("matched_attendee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
