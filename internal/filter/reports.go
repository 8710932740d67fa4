package filter

import (
	"path/filepath"

	"github.com/dyluth/keel/pkg/ledger"
)

// Criteria defines filtering criteria for drift reports.
// All filters are ANDed together - a report must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	MinSeverity      ledger.Severity // Minimum severity, empty = no filter
	CheckGlob        string          // Glob over check names; matches if any check matches
}

// Matches returns true if the report matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(report *ledger.DriftReport) bool {
	if c.SinceTimestampMs > 0 && report.TimestampMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && report.TimestampMs > c.UntilTimestampMs {
		return false
	}

	if c.MinSeverity != "" && !report.Severity.AtLeast(c.MinSeverity) {
		return false
	}

	if c.CheckGlob != "" {
		anyMatch := false
		for i := range report.Checks {
			matched, err := filepath.Match(c.CheckGlob, report.Checks[i].Name)
			if err == nil && matched && report.Checks[i].Drift > 0 {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.MinSeverity != "" ||
		c.CheckGlob != ""
}

// Apply returns the subset of reports matching the criteria, preserving order.
func (c *Criteria) Apply(reports []*ledger.DriftReport) []*ledger.DriftReport {
	if !c.HasFilters() {
		return reports
	}
	matched := make([]*ledger.DriftReport, 0, len(reports))
	for _, report := range reports {
		if c.Matches(report) {
			matched = append(matched, report)
		}
	}
	return matched
}
