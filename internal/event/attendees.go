package event

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttendeeStore provides read access to an event's roster.
type AttendeeStore interface {
	// ListByEvent returns the roster in stable load order.
	ListByEvent(ctx context.Context, eventID string) ([]*Attendee, error)
	// Get returns nil without error when the attendee does not exist.
	Get(ctx context.Context, id string) (*Attendee, error)
}

type attendeeStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAttendeeStore(db *gorm.DB, log *zap.Logger) AttendeeStore {
	return &attendeeStore{
		db:  db,
		log: log.With(zap.String("store", "attendees")),
	}
}

func (s *attendeeStore) ListByEvent(ctx context.Context, eventID string) ([]*Attendee, error) {
	var out []*Attendee
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *attendeeStore) Get(ctx context.Context, id string) (*Attendee, error) {
	var attendee Attendee
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&attendee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}
