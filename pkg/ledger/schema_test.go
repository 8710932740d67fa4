package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "keel:demo:truth:doc", TruthDocKey("demo"))
	assert.Equal(t, "keel:demo:truth:hash", TruthHashKey("demo"))
	assert.Equal(t, "keel:demo:items:backlog", ItemsKey("demo", CategoryBacklog))
	assert.Equal(t, "keel:demo:sprint:s1:items", SprintItemsKey("demo", "s1"))
	assert.Equal(t, "keel:demo:version:v123", VersionKey("demo", "v123"))
	assert.Equal(t, "keel:demo:versions", VersionIndexKey("demo"))
	assert.Equal(t, "keel:demo:version_cursor", VersionCursorKey("demo"))
	assert.Equal(t, "keel:demo:changelog", ChangelogKey("demo"))
	assert.Equal(t, "keel:demo:pattern:domain-mismatch/casino", PatternKey("demo", "domain-mismatch/casino"))
	assert.Equal(t, "keel:demo:patterns", PatternIndexKey("demo"))
	assert.Equal(t, "keel:demo:reports", ReportHistoryKey("demo"))
	assert.Equal(t, "keel:demo:escalations", EscalationsKey("demo"))
	assert.Equal(t, "keel:demo:resolution:r1", ResolutionKey("demo", "r1"))
	assert.Equal(t, "keel:demo:resolutions", ResolutionIndexKey("demo"))
	assert.Equal(t, "keel:demo:blocked", BlockedFlagKey("demo"))
}

func TestChannelPatterns(t *testing.T) {
	assert.Equal(t, "keel:demo:drift_events", DriftEventsChannel("demo"))
	assert.Equal(t, "keel:demo:violation_events", ViolationEventsChannel("demo"))
}

// Different projects must never share keys.
func TestKeyNamespacing(t *testing.T) {
	assert.NotEqual(t, TruthDocKey("alpha"), TruthDocKey("beta"))
	assert.NotEqual(t, ReportHistoryKey("alpha"), ReportHistoryKey("beta"))
	assert.NotEqual(t, DriftEventsChannel("alpha"), DriftEventsChannel("beta"))
}
