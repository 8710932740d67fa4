package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/keel/pkg/ledger"
)

func report(ts int64, severity ledger.Severity, checks ...ledger.DriftCheck) *ledger.DriftReport {
	return &ledger.DriftReport{
		ID:          "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		TimestampMs: ts,
		Severity:    severity,
		Checks:      checks,
	}
}

func TestMatches(t *testing.T) {
	t.Run("empty criteria matches everything", func(t *testing.T) {
		c := &Criteria{}
		assert.True(t, c.Matches(report(100, ledger.SeverityNone)))
		assert.False(t, c.HasFilters())
	})

	t.Run("time range", func(t *testing.T) {
		c := &Criteria{SinceTimestampMs: 100, UntilTimestampMs: 200}
		assert.False(t, c.Matches(report(50, ledger.SeverityNone)))
		assert.True(t, c.Matches(report(150, ledger.SeverityNone)))
		assert.False(t, c.Matches(report(250, ledger.SeverityNone)))
	})

	t.Run("minimum severity", func(t *testing.T) {
		c := &Criteria{MinSeverity: ledger.SeverityModerate}
		assert.False(t, c.Matches(report(1, ledger.SeverityMinor)))
		assert.True(t, c.Matches(report(1, ledger.SeverityModerate)))
		assert.True(t, c.Matches(report(1, ledger.SeverityCritical)))
	})

	t.Run("check glob needs a drifting match", func(t *testing.T) {
		c := &Criteria{CheckGlob: "sprint-*"}
		assert.True(t, c.Matches(report(1, ledger.SeverityMinor,
			ledger.DriftCheck{Name: "sprint-goals", Drift: 30})))
		assert.False(t, c.Matches(report(1, ledger.SeverityMinor,
			ledger.DriftCheck{Name: "sprint-goals", Drift: 0})))
		assert.False(t, c.Matches(report(1, ledger.SeverityMinor,
			ledger.DriftCheck{Name: "backlog", Drift: 90})))
	})
}

func TestApply(t *testing.T) {
	reports := []*ledger.DriftReport{
		report(100, ledger.SeverityNone),
		report(200, ledger.SeverityMajor),
		report(300, ledger.SeverityCritical),
	}

	c := &Criteria{MinSeverity: ledger.SeverityMajor}
	filtered := c.Apply(reports)
	assert.Len(t, filtered, 2)
	assert.Equal(t, int64(200), filtered[0].TimestampMs)
}
