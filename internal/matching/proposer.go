package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/harmony-community/harmony-matcher/internal/ai"
	"github.com/harmony-community/harmony-matcher/internal/event"
	"github.com/harmony-community/harmony-matcher/internal/logger"
	"github.com/harmony-community/harmony-matcher/internal/selection"
)

//go:embed prompt.md
var systemPrompt string

const (
	maxProposals          = 5
	maxPromptCandidates   = 10
	defaultMaxLogLength   = 200
	candidateSnippetRunes = 100
)

// Proposer asks the AI provider to rank the best matches for one attendee
// against a candidate pool. Every provider or parse failure is downgraded to
// zero proposals; a failed AI call must never abort a matching run.
type Proposer struct {
	provider  ai.Provider
	logger    *zap.Logger
	maxLogLen int
}

func NewProposer(provider ai.Provider, log *zap.Logger, maxLogLength int) *Proposer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Proposer{
		provider:  provider,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Propose returns up to 5 proposals for the subject. The pool is narrowed
// through the selection pipeline first; an empty surviving pool short-circuits
// without calling the provider.
func (p *Proposer) Propose(ctx context.Context, subject *event.Attendee, pool []*event.Attendee, excludeIDs []string) []*ai.Proposal {
	candidates, err := selection.Run(p.logger, subject, pool, selection.DefaultSteps(excludeIDs, maxPromptCandidates))
	if err != nil {
		p.logger.Warn("candidate selection failed",
			zap.String("attendee_id", subject.ID),
			zap.Error(err),
		)
		return nil
	}

	if len(candidates) == 0 {
		p.logger.Debug("no candidates left for attendee", zap.String("attendee_id", subject.ID))
		return nil
	}

	prompt := buildPrompt(subject, candidates)

	p.logger.Debug("requesting match proposals",
		zap.String("attendee_id", subject.ID),
		zap.Int("candidates", len(candidates)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.provider.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		p.logger.Warn("ai proposal call failed",
			zap.String("attendee_id", subject.ID),
			zap.Error(err),
		)
		return nil
	}

	proposals, err := parseProposals(raw)
	if err != nil {
		p.logger.Warn("unparseable ai response",
			zap.String("attendee_id", subject.ID),
			zap.String("response_preview", logger.TruncateForLog(raw, p.maxLogLen)),
			zap.Error(err),
		)
		return nil
	}

	return proposals
}

func buildPrompt(subject *event.Attendee, candidates []*event.Attendee) string {
	var b strings.Builder

	b.WriteString("Main attendee:\n")
	b.WriteString(FormatProfile(subject))
	b.WriteString("\n\n---\nCandidates (ranked by baseline compatibility):\n")

	for i, candidate := range candidates {
		score := selection.Compatibility(subject, candidate)
		fmt.Fprintf(&b, "Rank %d (baseline compatibility: %d%%)\n", i+1, score)
		fmt.Fprintf(&b, "id: %s\n", candidate.ID)
		b.WriteString(FormatProfileCompact(candidate))
		b.WriteString("\n")
		writeSnippet(&b, "Bio", candidate.Bio)
		writeSnippet(&b, "Skills", candidate.Skills)
		writeSnippet(&b, "Looking for", candidate.LookingFor)
		if i+1 < len(candidates) {
			b.WriteString("---\n")
		}
	}

	b.WriteString("\nPropose the best matches for the main attendee from the candidates above. JSON only.")

	return b.String()
}

func writeSnippet(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, truncateRunes(value, candidateSnippetRunes))
}

func parseProposals(raw string) ([]*ai.Proposal, error) {
	blob := extractJSONObject(raw)
	if blob == "" {
		return nil, errors.New("no json object in response")
	}

	var payload struct {
		Matches []map[string]any `json:"matches"`
	}
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("parse proposals: %w", err)
	}

	proposals := make([]*ai.Proposal, 0, len(payload.Matches))
	for _, entry := range payload.Matches {
		var proposal ai.Proposal

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &proposal,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("build proposal decoder: %w", err)
		}
		if err := decoder.Decode(entry); err != nil {
			// One malformed entry does not spoil the rest.
			continue
		}

		proposal.ID = strings.TrimSpace(proposal.ID)
		if proposal.ID == "" {
			continue
		}

		proposal.Type = normalizeType(proposal.Type)
		proposal.Score = clampScore(proposal.Score)

		proposals = append(proposals, &proposal)
		if len(proposals) == maxProposals {
			break
		}
	}

	return proposals, nil
}

// extractJSONObject returns the first balanced top-level JSON object in the
// text, tolerating prose or code fences around it.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}

	return ""
}

// normalizeType maps whatever label the model produced onto the fixed enum.
func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case event.MatchTypeComplementary:
		return event.MatchTypeComplementary
	case event.MatchTypeSimilar, "collaborative":
		return event.MatchTypeSimilar
	case event.MatchTypeMentorship, "mentee", "mentor":
		return event.MatchTypeMentorship
	default:
		return event.MatchTypeSerendipity
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
