package selection

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/harmony-community/harmony-matcher/internal/event"
)

// Step narrows or reorders the candidate pool for one subject attendee.
type Step interface {
	Name() string
	Apply(subject *event.Attendee, pool []*event.Attendee) ([]*event.Attendee, error)
}

// Run executes the supplied steps sequentially, logging how each reshapes
// the pool.
func Run(logger *zap.Logger, subject *event.Attendee, pool []*event.Attendee, steps []Step) ([]*event.Attendee, error) {
	for _, step := range steps {
		initial := len(pool)

		next, err := step.Apply(subject, pool)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if logger != nil {
			logger.Debug("selection step",
				zap.String("name", step.Name()),
				zap.String("attendee_id", subject.ID),
				zap.Int("initial", initial),
				zap.Int("dropped", initial-len(next)),
				zap.Int("left", len(next)),
			)
		}

		pool = next
	}

	return pool, nil
}

// DefaultSteps is the pre-selection pipeline used before prompting the
// model: drop the subject and already-matched attendees, rank the rest by
// heuristic compatibility, then diversify by industry down to limit.
func DefaultSteps(excludeIDs []string, limit int) []Step {
	return []Step{
		NewExcludeIDs(excludeIDs),
		NewCompatibilityRank(),
		NewDiversify(limit),
	}
}
