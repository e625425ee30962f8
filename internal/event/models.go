package event

import (
	"time"

	"gorm.io/datatypes"
)

// Attendee is one participant in one event. Identity is immutable; the
// free-text profile fields are editable by the organizer or import.
type Attendee struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"not null;index;uniqueIndex:idx_attendee_event_phone" json:"event_id"`
	Phone      string    `gorm:"not null;uniqueIndex:idx_attendee_event_phone" json:"phone"`
	Name       string    `gorm:"not null" json:"name"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	Industry   string    `json:"industry,omitempty"`
	Location   string    `json:"location,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	Skills     string    `json:"skills,omitempty"`
	LookingFor string    `json:"looking_for,omitempty"`
	Offering   string    `json:"offering,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Attendee) TableName() string { return "attendees" }

// Match type enum. The proposal client normalizes whatever the model
// returns onto these four values.
const (
	MatchTypeComplementary = "complementary"
	MatchTypeSimilar       = "similar"
	MatchTypeMentorship    = "mentorship"
	MatchTypeSerendipity   = "serendipity"
)

// MatchSourceAI marks rows produced by the AI proposal client.
const MatchSourceAI = "ai"

// Match is a directed edge: AttendeeID was shown MatchedAttendeeID. Rows are
// append-only; only the Mutual flag is ever rewritten, by
// MatchStore.RecomputeMutualFlags.
type Match struct {
	ID                   string         `gorm:"primaryKey" json:"id"`
	EventID              string         `gorm:"not null;index" json:"event_id"`
	AttendeeID           string         `gorm:"not null;index" json:"attendee_id"`
	MatchedAttendeeID    string         `gorm:"not null;index" json:"matched_attendee_id"`
	Score                int            `json:"score"`
	Type                 string         `json:"type"`
	Source               string         `json:"source"`
	Reasoning            string         `json:"reasoning"`
	ConversationStarters datatypes.JSON `json:"conversation_starters"`
	SynergyFactors       datatypes.JSON `json:"synergy_factors"`
	BatchNumber          int            `gorm:"not null;default:1" json:"batch_number"`
	Mutual               bool           `gorm:"not null;default:false" json:"mutual"`
	CreatedAt            time.Time      `json:"created_at"`
}

func (Match) TableName() string { return "matches" }

// Matching run statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Run records one matching generation round for an event: lifecycle status,
// coarse progress for polling, and timestamps.
type Run struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	EventID        string     `gorm:"not null;index" json:"event_id"`
	Status         string     `gorm:"not null;index" json:"status"`
	Progress       int        `gorm:"not null;default:0" json:"progress"`
	ProcessedCount int        `gorm:"not null;default:0" json:"processed_count"`
	TotalCount     int        `gorm:"not null;default:0" json:"total_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}

func (Run) TableName() string { return "matching_runs" }
