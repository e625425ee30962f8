package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harmony-community/harmony-matcher/internal/ai"
	"github.com/harmony-community/harmony-matcher/internal/event"
)

const firstBatch = 1

// proposalSource is the part of the Proposer the orchestrator depends on.
type proposalSource interface {
	Propose(ctx context.Context, subject *event.Attendee, pool []*event.Attendee, excludeIDs []string) []*ai.Proposal
}

// Orchestrator drives matching runs: it walks the roster sequentially, asks
// the proposal client for matches, persists accepted edges and recomputes the
// mutual flags once per batch. It is meant to run inside the scheduler, which
// guarantees at most one run touches an event's matches at a time.
type Orchestrator struct {
	attendees event.AttendeeStore
	matches   event.MatchStore
	runs      event.RunStore
	proposer  proposalSource
	pacer     Pacer
	logger    *zap.Logger
}

func NewOrchestrator(
	attendees event.AttendeeStore,
	matches event.MatchStore,
	runs event.RunStore,
	proposer proposalSource,
	pacer Pacer,
	log *zap.Logger,
) *Orchestrator {
	if pacer == nil {
		pacer = NewFixedDelayPacer(DefaultPacingDelay)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		attendees: attendees,
		matches:   matches,
		runs:      runs,
		proposer:  proposer,
		pacer:     pacer,
		logger:    log,
	}
}

// RunFullMatching regenerates every match for the event: prior matches are
// cleared first, so repeating the run with identical inputs converges to the
// same edge set. Store-level failures fail the run; a single attendee's AI
// failure does not.
func (o *Orchestrator) RunFullMatching(ctx context.Context, eventID string) error {
	run, err := o.runs.Create(ctx, eventID)
	if err != nil {
		return fmt.Errorf("create matching run: %w", err)
	}

	o.logger.Info("starting full matching",
		zap.String("event_id", eventID),
		zap.String("run_id", run.ID),
	)

	if err := o.runFull(ctx, eventID, run); err != nil {
		if markErr := o.runs.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
			o.logger.Warn("marking run failed", zap.String("run_id", run.ID), zap.Error(markErr))
		}
		return err
	}

	return nil
}

func (o *Orchestrator) runFull(ctx context.Context, eventID string, run *event.Run) error {
	if err := o.runs.MarkRunning(ctx, run.ID); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	attendees, err := o.attendees.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}

	if len(attendees) < 2 {
		o.logger.Info("not enough attendees to match",
			zap.String("event_id", eventID),
			zap.Int("count", len(attendees)),
		)
		return o.runs.MarkCompleted(ctx, run.ID)
	}

	if err := o.matches.Clear(ctx, eventID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}

	roster := rosterSet(attendees)

	for i, attendee := range attendees {
		cancelled, err := o.runs.IsCancelled(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("check run status: %w", err)
		}
		if cancelled {
			o.logger.Info("matching run cancelled",
				zap.String("event_id", eventID),
				zap.String("run_id", run.ID),
				zap.Int("processed", i),
			)
			return nil
		}

		if err := o.matchOne(ctx, attendee, attendees, roster, nil, firstBatch); err != nil {
			o.logger.Warn("skipping attendee after matching failure",
				zap.String("attendee_id", attendee.ID),
				zap.String("attendee_name", attendee.Name),
				zap.Error(err),
			)
		}

		if err := o.runs.UpdateProgress(ctx, run.ID, i+1, len(attendees)); err != nil {
			return fmt.Errorf("update run progress: %w", err)
		}

		if i+1 < len(attendees) {
			if err := o.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("pacing wait: %w", err)
			}
		}
	}

	if err := o.matches.RecomputeMutualFlags(ctx, eventID); err != nil {
		return fmt.Errorf("recompute mutual flags: %w", err)
	}

	o.logger.Info("full matching completed",
		zap.String("event_id", eventID),
		zap.Int("attendees", len(attendees)),
	)

	return o.runs.MarkCompleted(ctx, run.ID)
}

// RunIncrementalMatching appends one more proposal batch for a single
// attendee, excluding everyone already matched to them in any earlier batch.
// Prior rows are kept; the same pair may appear again in a later batch.
func (o *Orchestrator) RunIncrementalMatching(ctx context.Context, attendeeID string, batchNumber int) error {
	attendee, err := o.attendees.Get(ctx, attendeeID)
	if err != nil {
		return fmt.Errorf("load attendee: %w", err)
	}
	if attendee == nil {
		return fmt.Errorf("attendee %s not found", attendeeID)
	}

	pool, err := o.attendees.ListByEvent(ctx, attendee.EventID)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}

	excludeIDs, err := o.matches.MatchedAttendeeIDs(ctx, attendeeID)
	if err != nil {
		return fmt.Errorf("load matched attendee ids: %w", err)
	}

	o.logger.Info("starting incremental matching",
		zap.String("attendee_id", attendeeID),
		zap.Int("batch", batchNumber),
		zap.Int("excluded", len(excludeIDs)),
	)

	if err := o.matchOne(ctx, attendee, pool, rosterSet(pool), excludeIDs, batchNumber); err != nil {
		return err
	}

	if err := o.matches.RecomputeMutualFlags(ctx, attendee.EventID); err != nil {
		return fmt.Errorf("recompute mutual flags: %w", err)
	}

	return nil
}

// matchOne asks for proposals and persists the valid ones. Proposals pointing
// at the subject itself or at ids outside the roster are dropped, never
// stored.
func (o *Orchestrator) matchOne(ctx context.Context, subject *event.Attendee, pool []*event.Attendee, roster map[string]struct{}, excludeIDs []string, batchNumber int) error {
	proposals := o.proposer.Propose(ctx, subject, pool, excludeIDs)

	inserted := 0
	for _, proposal := range proposals {
		if proposal.ID == subject.ID {
			continue
		}
		if _, ok := roster[proposal.ID]; !ok {
			o.logger.Debug("dropping proposal for unknown attendee",
				zap.String("attendee_id", subject.ID),
				zap.String("proposed_id", proposal.ID),
			)
			continue
		}

		m := &event.Match{
			EventID:              subject.EventID,
			AttendeeID:           subject.ID,
			MatchedAttendeeID:    proposal.ID,
			Score:                proposal.Score,
			Type:                 proposal.Type,
			Source:               event.MatchSourceAI,
			Reasoning:            proposal.Reasoning,
			ConversationStarters: stringListJSON(proposal.ConversationStarters),
			SynergyFactors:       stringListJSON(proposal.SynergyFactors),
			BatchNumber:          batchNumber,
		}
		if err := o.matches.Insert(ctx, m); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		inserted++
	}

	o.logger.Info("matched attendee",
		zap.String("attendee_id", subject.ID),
		zap.Int("proposals", len(proposals)),
		zap.Int("inserted", inserted),
	)

	return nil
}

func rosterSet(attendees []*event.Attendee) map[string]struct{} {
	set := make(map[string]struct{}, len(attendees))
	for _, a := range attendees {
		set[a.ID] = struct{}{}
	}
	return set
}

func stringListJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
