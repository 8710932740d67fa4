package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by project name so that
// multiple Keel projects can safely coexist on a single Redis server.
//
// Key pattern: keel:{project}:{entity}[:{id}]
// Channel pattern: keel:{project}:{event_type}_events

// TruthDocKey returns the Redis key for the canonical truth document.
// Pattern: keel:{project}:truth:doc
func TruthDocKey(project string) string {
	return fmt.Sprintf("keel:%s:truth:doc", project)
}

// TruthHashKey returns the Redis key for the truth document content hash.
// The hash is the compare-and-swap guard for all truth mutations.
// Pattern: keel:{project}:truth:hash
func TruthHashKey(project string) string {
	return fmt.Sprintf("keel:%s:truth:hash", project)
}

// ItemsKey returns the Redis key for a category's item log (a list).
// Pattern: keel:{project}:items:{category}
func ItemsKey(project string, category Category) string {
	return fmt.Sprintf("keel:%s:items:%s", project, category)
}

// SprintItemsKey returns the Redis key for a sprint's task list.
// Pattern: keel:{project}:sprint:{sprint_id}:items
func SprintItemsKey(project, sprintID string) string {
	return fmt.Sprintf("keel:%s:sprint:%s:items", project, sprintID)
}

// VersionKey returns the Redis key for an immutable truth version snapshot.
// Pattern: keel:{project}:version:{version_id}
func VersionKey(project, versionID string) string {
	return fmt.Sprintf("keel:%s:version:%s", project, versionID)
}

// VersionIndexKey returns the Redis key for the ordered version index ZSET.
// Score is the version sequence number, so ZRANGE yields creation order.
// Pattern: keel:{project}:versions
func VersionIndexKey(project string) string {
	return fmt.Sprintf("keel:%s:versions", project)
}

// VersionCursorKey returns the Redis key for the current-version pointer.
// Pattern: keel:{project}:version_cursor
func VersionCursorKey(project string) string {
	return fmt.Sprintf("keel:%s:version_cursor", project)
}

// ChangelogKey returns the Redis key for the append-only changelog list.
// Pattern: keel:{project}:changelog
func ChangelogKey(project string) string {
	return fmt.Sprintf("keel:%s:changelog", project)
}

// PatternKey returns the Redis key for a violation pattern.
// Pattern: keel:{project}:pattern:{type}/{signature}
func PatternKey(project, patternKey string) string {
	return fmt.Sprintf("keel:%s:pattern:%s", project, patternKey)
}

// PatternIndexKey returns the Redis key for the set of known pattern keys.
// Pattern: keel:{project}:patterns
func PatternIndexKey(project string) string {
	return fmt.Sprintf("keel:%s:patterns", project)
}

// ReportHistoryKey returns the Redis key for the bounded drift report history.
// Reports are LPUSHed and the list is trimmed to ReportHistoryCap entries,
// so the oldest report is evicted first.
// Pattern: keel:{project}:reports
func ReportHistoryKey(project string) string {
	return fmt.Sprintf("keel:%s:reports", project)
}

// EscalationsKey returns the Redis key for the persisted escalation log.
// Pattern: keel:{project}:escalations
func EscalationsKey(project string) string {
	return fmt.Sprintf("keel:%s:escalations", project)
}

// ResolutionKey returns the Redis key for a resolution workflow.
// Pattern: keel:{project}:resolution:{resolution_id}
func ResolutionKey(project, resolutionID string) string {
	return fmt.Sprintf("keel:%s:resolution:%s", project, resolutionID)
}

// ResolutionIndexKey returns the Redis key for the set of resolution IDs.
// Pattern: keel:{project}:resolutions
func ResolutionIndexKey(project string) string {
	return fmt.Sprintf("keel:%s:resolutions", project)
}

// BlockedFlagKey returns the Redis key for the global "blocked" flag set by
// emergency and intervention resolutions.
// Pattern: keel:{project}:blocked
func BlockedFlagKey(project string) string {
	return fmt.Sprintf("keel:%s:blocked", project)
}

// DriftEventsChannel returns the Pub/Sub channel for drift report events.
// Pattern: keel:{project}:drift_events
func DriftEventsChannel(project string) string {
	return fmt.Sprintf("keel:%s:drift_events", project)
}

// ViolationEventsChannel returns the Pub/Sub channel for violation events
// (blocked/review verification results).
// Pattern: keel:{project}:violation_events
func ViolationEventsChannel(project string) string {
	return fmt.Sprintf("keel:%s:violation_events", project)
}
