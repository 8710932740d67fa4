// Package scoring implements the deterministic confidence scorer. Confidence
// (0-100) estimates how likely a work item violates the project truth; it is
// a pure function of (item, truth, learned patterns) built from four
// independent sub-dimension scorers combined with fixed weights:
// domain 40%, user 30%, competitor 20%, historical 10%.
//
// Sub-scorers sit behind the SubScorer interface so individual heuristics can
// be swapped without touching callers.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/dyluth/keel/pkg/ledger"
)

// Fixed sub-dimension weights.
const (
	weightDomain     = 0.40
	weightUser       = 0.30
	weightCompetitor = 0.20
	weightHistorical = 0.10
)

// hardFloor is the minimum combined confidence once any sub-scorer raises a
// hard signal. It lands in the blocked band of the status ladder.
const hardFloor = 95

// Reason labels for the dominant sub-dimension.
const (
	ReasonAligned        = "aligned"
	ReasonEmptyItem      = "empty item"
	ReasonDomainMismatch = "domain-mismatch"
	ReasonUserMisaligned = "user-misalignment"
	ReasonCompetitor     = "competitor-overlap"
	ReasonHistorical     = "historical-pattern"
	ReasonNotThis        = "not-this-violation"
)

// Dimension is the outcome of a single sub-dimension scorer.
type Dimension struct {
	Score    int    // 0-100
	Hard     bool   // A hard signal floors the combined score at hardFloor
	Evidence string // What triggered the score, for messages and learning
}

// SubScorer scores one dimension of an item against the truth.
// Implementations must be pure and side-effect free.
type SubScorer interface {
	Name() string
	Score(text string, truth *ledger.ProjectTruth, patterns []*ledger.ViolationPattern) Dimension
}

// Scorer combines the four sub-dimension scorers with fixed weights.
type Scorer struct {
	domain     SubScorer
	user       SubScorer
	competitor SubScorer
	historical SubScorer
}

// New creates a scorer with the standard sub-dimension heuristics.
func New() *Scorer {
	return &Scorer{
		domain:     domainScorer{},
		user:       userScorer{},
		competitor: competitorScorer{},
		historical: historyScorer{},
	}
}

// Score computes the confidence that the item violates the truth.
// Deterministic for identical (item, truth, patterns) inputs. An item with no
// text scores 0 on all dimensions. A NOT THIS match pins the total at 100.
func (s *Scorer) Score(item *ledger.Item, truth *ledger.ProjectTruth, patterns []*ledger.ViolationPattern) ledger.ConfidenceScore {
	text := strings.TrimSpace(item.Text())
	if text == "" {
		return ledger.ConfidenceScore{Reason: ReasonEmptyItem}
	}

	domain := s.domain.Score(text, truth, patterns)
	user := s.user.Score(text, truth, patterns)
	competitor := s.competitor.Score(text, truth, patterns)
	historical := s.historical.Score(text, truth, patterns)

	total := int(math.Round(
		weightDomain*float64(domain.Score) +
			weightUser*float64(user.Score) +
			weightCompetitor*float64(competitor.Score) +
			weightHistorical*float64(historical.Score)))

	if domain.Hard || user.Hard || competitor.Hard || historical.Hard {
		if total < hardFloor {
			total = hardFloor
		}
	}

	reason := dominantReason(domain, user, competitor, historical)

	// NOT THIS entries hard-block regardless of the weighted outcome.
	if entry, matched := MatchNotThis(text, truth.NotThis); matched {
		total = 100
		reason = fmt.Sprintf("%s: %s", ReasonNotThis, entry)
	}

	return ledger.ConfidenceScore{
		Total:      total,
		Domain:     domain.Score,
		User:       user.Score,
		Competitor: competitor.Score,
		Historical: historical.Score,
		Reason:     reason,
	}
}

// dominantReason names the sub-dimension with the largest weighted
// contribution. Ties resolve in weight order so the result is deterministic.
func dominantReason(domain, user, competitor, historical Dimension) string {
	type contribution struct {
		reason   string
		weighted float64
		evidence string
	}

	contributions := []contribution{
		{ReasonDomainMismatch, weightDomain * float64(domain.Score), domain.Evidence},
		{ReasonUserMisaligned, weightUser * float64(user.Score), user.Evidence},
		{ReasonCompetitor, weightCompetitor * float64(competitor.Score), competitor.Evidence},
		{ReasonHistorical, weightHistorical * float64(historical.Score), historical.Evidence},
	}

	best := contributions[0]
	for _, c := range contributions[1:] {
		if c.weighted > best.weighted {
			best = c
		}
	}

	if best.weighted == 0 {
		return ReasonAligned
	}
	if best.evidence != "" {
		return fmt.Sprintf("%s: %s", best.reason, best.evidence)
	}
	return best.reason
}

// MatchNotThis reports whether the text matches any NOT THIS entry, either as
// a whole-phrase substring or by containing every significant word of the
// entry. Returns the matched entry.
func MatchNotThis(text string, notThis []string) (string, bool) {
	lower := strings.ToLower(text)
	tokens := tokenSet(text)

	for _, entry := range notThis {
		if entry == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(entry)) {
			return entry, true
		}

		entryTokens := tokenize(entry)
		if len(entryTokens) == 0 {
			continue
		}
		all := true
		for _, tok := range entryTokens {
			if !tokens[tok] {
				all = false
				break
			}
		}
		if all {
			return entry, true
		}
	}

	return "", false
}

// VocabularyCoverage returns the fraction (0..1) of the text's tokens that
// appear in the truth's own vocabulary. Low coverage signals terminology
// drift. Returns 1 for empty text - nothing to drift.
func VocabularyCoverage(text string, truth *ledger.ProjectTruth) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 1
	}

	vocab := truthVocabulary(truth)
	hits := 0
	for _, tok := range tokens {
		if vocab[tok] || vocab[singular(tok)] {
			hits++
		}
	}

	return float64(hits) / float64(len(tokens))
}

// truthVocabulary collects every token the truth itself uses: the building
// statement, industry, target users, domain terms and their definitions.
func truthVocabulary(truth *ledger.ProjectTruth) map[string]bool {
	var b strings.Builder
	b.WriteString(truth.WhatWereBuilding)
	b.WriteString(" " + truth.Industry)
	b.WriteString(" " + truth.TargetUsers.Primary)
	for _, u := range truth.TargetUsers.Secondary {
		b.WriteString(" " + u)
	}
	for _, term := range truth.DomainTerms {
		b.WriteString(" " + term.Term + " " + term.Definition)
	}
	return tokenSet(b.String())
}
