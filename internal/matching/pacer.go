package matching

import (
	"context"
	"time"

	"github.com/harmony-community/harmony-matcher/internal/utils"
)

// DefaultPacingDelay is the pause between consecutive attendees in a full
// run. It is a deliberate backpressure mechanism against provider rate
// limits, not an incidental sleep.
const DefaultPacingDelay = 500 * time.Millisecond

// Pacer spaces out consecutive AI calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

type fixedDelayPacer struct {
	delay time.Duration
}

// NewFixedDelayPacer returns a pacer that pauses for a constant duration,
// honoring context cancellation.
func NewFixedDelayPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		delay = DefaultPacingDelay
	}
	return &fixedDelayPacer{delay: delay}
}

func (p *fixedDelayPacer) Wait(ctx context.Context) error {
	return utils.WaitFor(ctx, p.delay)
}

type nopPacer struct{}

// NewNopPacer returns a pacer that never waits, for tests.
func NewNopPacer() Pacer { return nopPacer{} }

func (nopPacer) Wait(context.Context) error { return nil }
