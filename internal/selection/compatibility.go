package selection

import (
	"strings"
	"unicode"

	"github.com/harmony-community/harmony-matcher/internal/event"
)

// Compatibility estimates how well two attendees fit on a 0-100 scale using
// only their profile text. The score is normalized by the signals both
// profiles actually provide, so sparse profiles are not pinned to zero.
func Compatibility(subject, candidate *event.Attendee) int {
	score := 0
	possible := 0

	// Complementarity: what the subject looks for against what the
	// candidate offers carries the most weight.
	switch {
	case subject.LookingFor != "" && candidate.Offering != "":
		possible += 40
		score += int(40*overlapRatio(subject.LookingFor, candidate.Offering) + 0.5)
	case subject.Skills != "" && candidate.Offering != "":
		possible += 25
		score += int(25*overlapRatio(subject.Skills, candidate.Offering) + 0.5)
	}

	if subject.Skills != "" && candidate.Skills != "" {
		possible += 20
		score += int(20*overlapRatio(subject.Skills, candidate.Skills) + 0.5)
	}

	if subject.Industry != "" && candidate.Industry != "" {
		possible += 15
		if strings.EqualFold(strings.TrimSpace(subject.Industry), strings.TrimSpace(candidate.Industry)) {
			score += 15
		} else {
			score += int(15*overlapRatio(subject.Industry, candidate.Industry) + 0.5)
		}
	}

	if subject.Location != "" && candidate.Location != "" {
		possible += 10
		if strings.EqualFold(strings.TrimSpace(subject.Location), strings.TrimSpace(candidate.Location)) {
			score += 10
		} else {
			score += int(10*overlapRatio(subject.Location, candidate.Location) + 0.5)
		}
	}

	if subject.Title != "" && candidate.Title != "" {
		possible += 15
		diff := seniorityLevel(subject.Title) - seniorityLevel(candidate.Title)
		if diff < 0 {
			diff = -diff
		}
		switch diff {
		case 0:
			score += 15
		case 1:
			score += 12
		case 2:
			score += 7
		default:
			score += 3
		}
	}

	if subject.Bio != "" && candidate.Bio != "" {
		possible += 10
		score += int(10*overlapRatio(subject.Bio, candidate.Bio) + 0.5)
	}

	if possible == 0 {
		return 0
	}

	normalized := score * 100 / possible
	if normalized > 100 {
		normalized = 100
	}
	if normalized < 0 {
		normalized = 0
	}
	return normalized
}

// overlapRatio is the share of shared tokens relative to the larger token set.
func overlapRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}

	shared := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared++
		}
	}

	return float64(shared) / float64(larger)
}

func tokenSet(s string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if len([]rune(token)) < 2 {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

// seniorityLevel buckets a free-text title into a rough experience band.
func seniorityLevel(title string) int {
	lower := strings.ToLower(title)

	switch {
	case containsAny(lower, "founder", "ceo", "cto", "chief", "president", "vp", "director"):
		return 5
	case containsAny(lower, "head of", "team lead", "principal"):
		return 4
	case containsAny(lower, "senior", "staff", "lead"):
		return 3
	case containsAny(lower, "developer", "engineer", "designer", "analyst", "manager", "consultant"):
		return 2
	default:
		return 1
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
