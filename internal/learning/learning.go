// Package learning turns blocked and review verification results into
// persistent violation patterns, and summarises those patterns back into
// project insights.
//
// Five independent detectors each look for one class of violation in a
// result. Every detection merges into the pattern store atomically: the
// pattern keyed by type plus signature is created on first sight and
// thereafter accumulates occurrences, a running-average confidence and a
// bounded ring of examples.
package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/keel/internal/scoring"
	"github.com/dyluth/keel/pkg/ledger"
)

const (
	// creepConfidenceThreshold gates the feature-creep detector: a creep
	// phrase alone is not a violation, a creep phrase on an already
	// suspicious item is.
	creepConfidenceThreshold = 60

	// driftCoverageThreshold is the vocabulary coverage ratio below which an
	// item counts as terminology drift.
	driftCoverageThreshold = 0.25

	// driftSignature keys all terminology-drift observations into a single
	// pattern; unlike the other detectors there is no specific trigger term.
	driftSignature = "out-of-vocabulary"
)

// detection is a single detector hit to be merged into the store.
type detection struct {
	patternType ledger.PatternType
	signature   string
}

// System learns violation patterns from verification results.
type System struct {
	client *ledger.Client
	nowFn  func() time.Time
}

// NewSystem creates a learning system backed by the given ledger client.
func NewSystem(client *ledger.Client) *System {
	return &System{
		client: client,
		nowFn:  time.Now,
	}
}

// LearnFromViolation runs all five detectors against the result and merges
// every detection into the pattern store. Detectors are independent: one
// failing merge does not stop the others, and all failures are returned
// joined.
func (s *System) LearnFromViolation(ctx context.Context, result *ledger.VerificationResult, truth *ledger.ProjectTruth) error {
	if result == nil || truth == nil {
		return fmt.Errorf("result and truth are required")
	}

	now := s.nowFn().UnixMilli()
	example := ledger.PatternExample{
		Title:      result.Item.Title,
		Confidence: result.Confidence,
		SeenAtMs:   now,
	}

	var errs []error
	for _, d := range s.detect(result, truth) {
		if err := s.merge(ctx, d, truth, example); err != nil {
			errs = append(errs, fmt.Errorf("failed to merge %s pattern: %w", d.patternType, err))
		}
	}
	return errors.Join(errs...)
}

// detect runs the five detectors. Order is fixed so merges happen in a
// deterministic sequence.
func (s *System) detect(result *ledger.VerificationResult, truth *ledger.ProjectTruth) []detection {
	text := result.Item.Text()
	var found []detection

	for _, term := range scoring.ForeignDomainTerms(text, truth) {
		found = append(found, detection{ledger.PatternDomainMismatch, term.Term})
	}

	for _, userType := range scoring.ForeignUserTypes(text, truth) {
		found = append(found, detection{ledger.PatternUserMisalignment, userType})
	}

	if phrase, ok := scoring.MatchCreepPhrase(text); ok && result.Confidence >= creepConfidenceThreshold {
		found = append(found, detection{ledger.PatternFeatureCreep, phrase})
	}

	if entry, ok := scoring.MatchNotThis(text, truth.NotThis); ok {
		found = append(found, detection{ledger.PatternNotThisViolation, entry})
	}

	if scoring.VocabularyCoverage(text, truth) < driftCoverageThreshold {
		found = append(found, detection{ledger.PatternTerminologyDrift, driftSignature})
	}

	return found
}

// merge upserts one detection: new key creates the pattern, existing key
// accumulates the observation.
func (s *System) merge(ctx context.Context, d detection, truth *ledger.ProjectTruth, example ledger.PatternExample) error {
	key := ledger.PatternKeyFor(d.patternType, d.signature)

	_, err := s.client.UpsertPattern(ctx, key, func(p *ledger.ViolationPattern) {
		if p.Occurrences == 0 {
			p.Type = d.patternType
			p.Signature = d.signature
			p.Industry = truth.Industry
			p.TargetUser = truth.TargetUsers.Primary
		}
		p.Observe(example)
	})
	return err
}
