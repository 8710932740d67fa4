package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dyluth/keel/pkg/ledger"
)

func bookkeepingTruth() *ledger.ProjectTruth {
	return &ledger.ProjectTruth{
		WhatWereBuilding: "A bookkeeping tool for small businesses",
		Industry:         "bookkeeping",
		TargetUsers: ledger.TargetUsers{
			Primary:   "small business owners",
			Secondary: []string{"freelance accountants"},
		},
		NotThis: []string{"a gambling platform", "crypto wallet"},
		Competitors: []ledger.Competitor{
			{Name: "LedgerPro", Description: "enterprise accounting with payroll automation and forecasting dashboards"},
		},
		DomainTerms: []ledger.DomainTerm{
			{Term: "reconciliation", Definition: "matching bank transactions to book entries"},
			{Term: "invoice", Definition: "a bill issued to a customer"},
		},
	}
}

func item(title, description string) *ledger.Item {
	return &ledger.Item{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Category:    ledger.CategoryBacklog,
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := New()
	truth := bookkeepingTruth()
	it := item("Casino odds tracker", "Track casino odds for sports betting")

	first := s.Score(it, truth, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(it, truth, nil))
	}
}

func TestScoreEmptyItem(t *testing.T) {
	s := New()
	score := s.Score(&ledger.Item{ID: uuid.New().String(), Category: ledger.CategoryBacklog}, bookkeepingTruth(), nil)

	assert.Zero(t, score.Total)
	assert.Zero(t, score.Domain)
	assert.Zero(t, score.User)
	assert.Zero(t, score.Competitor)
	assert.Zero(t, score.Historical)
	assert.Equal(t, ReasonEmptyItem, score.Reason)
}

func TestScoreAlignedItem(t *testing.T) {
	s := New()
	score := s.Score(item("Invoice reconciliation", "Match invoices against bank transactions for small business owners"), bookkeepingTruth(), nil)

	assert.Less(t, score.Total, 60, "aligned bookkeeping work must stay in the allowed band")
	assert.Equal(t, ledger.StatusAllowed, ledger.StatusForConfidence(score.Total))
}

// A bookkeeping project picking up casino vocabulary is a hard domain
// conflict and must land in the blocked band.
func TestScoreDomainConflict(t *testing.T) {
	s := New()
	score := s.Score(item("Casino odds widget", "Show live casino odds on the dashboard"), bookkeepingTruth(), nil)

	assert.GreaterOrEqual(t, score.Total, 95)
	assert.Equal(t, ledger.StatusBlocked, ledger.StatusForConfidence(score.Total))
	assert.Contains(t, score.Reason, ReasonDomainMismatch)
}

func TestScoreNotThisPinsAtHundred(t *testing.T) {
	s := New()
	score := s.Score(item("Wallet integration", "Add a crypto wallet for balances"), bookkeepingTruth(), nil)

	assert.Equal(t, 100, score.Total)
	assert.Contains(t, score.Reason, ReasonNotThis)
}

func TestScoreUserMisalignment(t *testing.T) {
	s := New()
	score := s.Score(item("Onboarding revamp", "Streamline signup for teenagers and streamers"), bookkeepingTruth(), nil)

	assert.Greater(t, score.User, 0)
	assert.Contains(t, score.Reason, ReasonUserMisaligned)
}

func TestScoreUserAlignedMentions(t *testing.T) {
	s := New()
	score := s.Score(item("Accountant workflows", "Faster monthly close for accountants"), bookkeepingTruth(), nil)

	assert.Zero(t, score.User, "target users are not misalignment")
}

func TestScoreCompetitorOverlap(t *testing.T) {
	s := New()
	score := s.Score(item("Payroll automation", "Add payroll automation and forecasting dashboards"), bookkeepingTruth(), nil)

	assert.Greater(t, score.Competitor, 0)
}

func TestScoreHistoricalBoost(t *testing.T) {
	s := New()
	patterns := []*ledger.ViolationPattern{
		{
			Type:        ledger.PatternDomainMismatch,
			Signature:   "casino",
			Occurrences: 4,
		},
	}

	without := s.Score(item("Odds page", "A page about casino features"), bookkeepingTruth(), nil)
	with := s.Score(item("Odds page", "A page about casino features"), bookkeepingTruth(), patterns)

	assert.Greater(t, with.Historical, without.Historical)
	assert.Equal(t, 80, with.Historical) // 4 occurrences * 20
}

func TestHistoryScorerTieBreaksByKey(t *testing.T) {
	// Equal boosts; the stored pattern set has no order, so the evidence
	// must come from the lexicographically first key either way round.
	casino := &ledger.ViolationPattern{
		Type:        ledger.PatternDomainMismatch,
		Signature:   "casino",
		Occurrences: 3,
	}
	odds := &ledger.ViolationPattern{
		Type:        ledger.PatternDomainMismatch,
		Signature:   "odds",
		Occurrences: 3,
	}
	text := "A page about casino odds"

	forward := historyScorer{}.Score(text, bookkeepingTruth(), []*ledger.ViolationPattern{casino, odds})
	reverse := historyScorer{}.Score(text, bookkeepingTruth(), []*ledger.ViolationPattern{odds, casino})

	assert.Equal(t, forward, reverse)
	assert.Equal(t, 60, forward.Score)
	assert.Contains(t, forward.Evidence, casino.Key())
}

func TestMatchNotThis(t *testing.T) {
	notThis := []string{"a gambling platform", "crypto wallet"}

	t.Run("phrase substring matches", func(t *testing.T) {
		entry, ok := MatchNotThis("build a gambling platform for the weekend", notThis)
		assert.True(t, ok)
		assert.Equal(t, "a gambling platform", entry)
	})

	t.Run("all-words match without phrase order", func(t *testing.T) {
		entry, ok := MatchNotThis("wallet support for crypto balances", notThis)
		assert.True(t, ok)
		assert.Equal(t, "crypto wallet", entry)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := MatchNotThis("monthly invoice summary", notThis)
		assert.False(t, ok)
	})
}

func TestVocabularyCoverage(t *testing.T) {
	truth := bookkeepingTruth()

	t.Run("in-vocabulary text covers well", func(t *testing.T) {
		coverage := VocabularyCoverage("invoice reconciliation for small business owners", truth)
		assert.Greater(t, coverage, 0.5)
	})

	t.Run("foreign text covers poorly", func(t *testing.T) {
		coverage := VocabularyCoverage("multiplayer quest leaderboard matchmaking", truth)
		assert.Less(t, coverage, 0.25)
	})

	t.Run("empty text is full coverage", func(t *testing.T) {
		assert.Equal(t, 1.0, VocabularyCoverage("", truth))
	})
}

func TestSubScorerNames(t *testing.T) {
	assert.Equal(t, "domain", domainScorer{}.Name())
	assert.Equal(t, "user", userScorer{}.Name())
	assert.Equal(t, "competitor", competitorScorer{}.Name())
	assert.Equal(t, "historical", historyScorer{}.Name())
}
