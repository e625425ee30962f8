package selection

import (
	"sort"
	"strings"

	"github.com/harmony-community/harmony-matcher/internal/event"
)

type excludeIDsStep struct {
	ids map[string]struct{}
}

// NewExcludeIDs creates a step that drops the subject itself and every
// candidate in the exclusion set.
func NewExcludeIDs(ids []string) Step {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &excludeIDsStep{ids: set}
}

func (s *excludeIDsStep) Name() string { return "exclude_ids" }

func (s *excludeIDsStep) Apply(subject *event.Attendee, pool []*event.Attendee) ([]*event.Attendee, error) {
	out := make([]*event.Attendee, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == subject.ID {
			continue
		}
		if _, excluded := s.ids[candidate.ID]; excluded {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

type compatibilityRankStep struct{}

// NewCompatibilityRank creates a step that orders candidates by heuristic
// compatibility with the subject, best first.
func NewCompatibilityRank() Step {
	return &compatibilityRankStep{}
}

func (s *compatibilityRankStep) Name() string { return "compatibility_rank" }

func (s *compatibilityRankStep) Apply(subject *event.Attendee, pool []*event.Attendee) ([]*event.Attendee, error) {
	out := make([]*event.Attendee, len(pool))
	copy(out, pool)

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := Compatibility(subject, out[i]), Compatibility(subject, out[j])
		if si != sj {
			return si > sj
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

type diversifyStep struct {
	limit int
}

// NewDiversify creates a step that caps the pool at limit candidates while
// spreading the picks across industries round-robin, so a large mono-industry
// roster does not crowd out everyone else. Remaining slots are backfilled by
// compatibility.
func NewDiversify(limit int) Step {
	return &diversifyStep{limit: limit}
}

func (s *diversifyStep) Name() string { return "diversify" }

func (s *diversifyStep) Apply(subject *event.Attendee, pool []*event.Attendee) ([]*event.Attendee, error) {
	if s.limit <= 0 || len(pool) <= s.limit {
		return pool, nil
	}

	groups := make(map[string][]*event.Attendee)
	order := make([]string, 0)
	for _, candidate := range pool {
		key := strings.TrimSpace(candidate.Industry)
		if key == "" {
			key = "other"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], candidate)
	}

	// Largest groups drain first so round-robin ends evenly.
	sort.SliceStable(order, func(i, j int) bool {
		return len(groups[order[i]]) > len(groups[order[j]])
	})

	result := make([]*event.Attendee, 0, s.limit)
	for len(result) < s.limit {
		added := false
		for _, key := range order {
			group := groups[key]
			if len(group) == 0 {
				continue
			}
			result = append(result, group[0])
			groups[key] = group[1:]
			added = true
			if len(result) == s.limit {
				break
			}
		}
		if !added {
			break
		}
	}

	return result, nil
}
