package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// ProjectTruth is the canonical statement of what the project is building,
// for whom, and explicitly what it is not. It is the yardstick every work
// item is verified against. The truth is created once and subsequently only
// replaced through the version manager - never edited in place.
type ProjectTruth struct {
	WhatWereBuilding string       `json:"what_were_building"` // One-line statement of intent
	Industry         string       `json:"industry"`           // Domain the project operates in (e.g. "bookkeeping")
	TargetUsers      TargetUsers  `json:"target_users"`       // Who the project serves
	NotThis          []string     `json:"not_this"`           // Explicit exclusions - matches hard-block
	Competitors      []Competitor `json:"competitors"`        // Known competitors and what distinguishes them
	DomainTerms      []DomainTerm `json:"domain_terms"`       // Project vocabulary with definitions
	Version          string       `json:"version"`            // Semver of the current truth
	LastVerifiedMs   int64        `json:"last_verified_ms"`   // Unix ms of the last verification touch
}

// TargetUsers describes the primary and secondary audiences of the project.
type TargetUsers struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Competitor is a named competitor with a short description of its territory.
type Competitor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DomainTerm is a single entry in the project vocabulary.
type DomainTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Category classifies a work item by where it came from.
type Category string

const (
	// CategoryBacklog represents backlog items awaiting sprint assignment
	CategoryBacklog Category = "backlog"

	// CategorySprintTask represents tasks inside an active sprint
	CategorySprintTask Category = "sprint-task"

	// CategoryDocument represents project documents (designs, research notes)
	CategoryDocument Category = "document"

	// CategoryDecision represents recorded project decisions
	CategoryDecision Category = "decision"

	// CategorySprintGoals represents sprint goal statements
	CategorySprintGoals Category = "sprint-goals"
)

// Validate checks if the Category is a valid enum value.
func (c Category) Validate() error {
	switch c {
	case CategoryBacklog, CategorySprintTask, CategoryDocument,
		CategoryDecision, CategorySprintGoals:
		return nil
	default:
		return fmt.Errorf("unknown category: %q", c)
	}
}

// Item is a single work artifact submitted for verification. Items are
// immutable inputs - verification never mutates them.
type Item struct {
	ID                 string   `json:"id"`                  // UUID - unique identifier for this item
	Title              string   `json:"title"`               // Short item title
	Description        string   `json:"description"`         // Full item text
	AcceptanceCriteria string   `json:"acceptance_criteria"` // Optional acceptance criteria text
	Category           Category `json:"category"`            // Where this item came from
	CreatedAtMs        int64    `json:"created_at_ms"`       // Unix ms when the item was recorded
}

// Text returns the full searchable text of the item: title, description and
// acceptance criteria joined with spaces. Scorers operate on this text.
func (i *Item) Text() string {
	return i.Title + " " + i.Description + " " + i.AcceptanceCriteria
}

// Validate checks if the Item has valid field values.
func (i *Item) Validate() error {
	if !isValidUUID(i.ID) {
		return fmt.Errorf("invalid item ID: not a valid UUID")
	}

	if i.Title == "" {
		return fmt.Errorf("item title cannot be empty")
	}

	if err := i.Category.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	return nil
}

// ConfidenceScore is the deterministic weighted estimate (0-100) that an item
// violates the project truth. Higher means more likely to be a violation.
// The four sub-dimension scores are combined with fixed weights:
// domain 40%, user 30%, competitor 20%, historical 10%.
type ConfidenceScore struct {
	Total      int    `json:"total"`      // Combined weighted score 0-100
	Domain     int    `json:"domain"`     // Domain-vocabulary mismatch vs truth.industry
	User       int    `json:"user"`       // Target-user-type mismatch
	Competitor int    `json:"competitor"` // Overlap with competitor-exclusive concepts
	Historical int    `json:"historical"` // Boost from matching stored violation patterns
	Reason     string `json:"reason"`     // Names the dominant sub-dimension
}

// Status is the verification verdict for a single item, derived from
// confidence via a fixed threshold ladder.
type Status string

const (
	// StatusAllowed indicates the item aligns with the project truth
	StatusAllowed Status = "allowed"

	// StatusWarning indicates mild misalignment worth a second look
	StatusWarning Status = "warning"

	// StatusReview indicates probable misalignment requiring human review
	StatusReview Status = "review"

	// StatusBlocked indicates a hard violation of the project truth
	StatusBlocked Status = "blocked"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusAllowed, StatusWarning, StatusReview, StatusBlocked:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// StatusForConfidence maps a confidence score to a verification status.
// The ladder is fixed and lower-bound inclusive:
// >=95 blocked, >=80 review, >=60 warning, else allowed.
func StatusForConfidence(confidence int) Status {
	switch {
	case confidence >= 95:
		return StatusBlocked
	case confidence >= 80:
		return StatusReview
	case confidence >= 60:
		return StatusWarning
	default:
		return StatusAllowed
	}
}

// VerificationResult is the outcome of verifying a single item.
type VerificationResult struct {
	Item           Item            `json:"item"`
	Status         Status          `json:"status"`
	Confidence     int             `json:"confidence"`
	Score          ConfidenceScore `json:"score"`
	Message        string          `json:"message"`
	Recommendation string          `json:"recommendation"`
	VerifiedAtMs   int64           `json:"verified_at_ms"`
}

// DriftCheck is the result of a single category check inside a drift cycle.
// Drift is the mean confidence of the sampled items; 0 when the sample is
// empty (absence of artifacts is not drift). A failed check records its error
// and is excluded from the aggregate.
type DriftCheck struct {
	Name       string `json:"name"`        // Check name: backlog, documents, commits, sprint-goals, decisions
	Drift      int    `json:"drift"`       // 0-100
	SampleSize int    `json:"sample_size"` // Number of items sampled
	Details    string `json:"details"`     // Human-readable check summary
	Err        string `json:"err,omitempty"`
}

// Failed reports whether the check errored and must be excluded from aggregates.
func (c *DriftCheck) Failed() bool {
	return c.Err != ""
}

// Severity classifies an overall drift level.
type Severity string

const (
	// SeverityNone indicates no meaningful drift
	SeverityNone Severity = "none"

	// SeverityMinor indicates low-level drift worth noting
	SeverityMinor Severity = "minor"

	// SeverityModerate indicates drift requiring a collaborative response
	SeverityModerate Severity = "moderate"

	// SeverityMajor indicates drift requiring intervention
	SeverityMajor Severity = "major"

	// SeverityCritical indicates drift requiring an emergency response
	SeverityCritical Severity = "critical"
)

// Validate checks if the Severity is a valid enum value.
func (s Severity) Validate() error {
	switch s {
	case SeverityNone, SeverityMinor, SeverityModerate, SeverityMajor, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("unknown severity: %q", s)
	}
}

// SeverityForDrift maps an overall drift value to a severity. The ladder is
// total and lower-bound inclusive: >=80 critical, >=60 major, >=40 moderate,
// >=20 minor, else none.
func SeverityForDrift(drift int) Severity {
	switch {
	case drift >= 80:
		return SeverityCritical
	case drift >= 60:
		return SeverityMajor
	case drift >= 40:
		return SeverityModerate
	case drift >= 20:
		return SeverityMinor
	default:
		return SeverityNone
	}
}

// AtLeast reports whether s is at or above the given severity on the
// none < minor < moderate < major < critical ordering.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank(s) >= severityRank(min)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// DriftReport aggregates one drift cycle across all category checks.
// Reports are held in a bounded history (cap 100, oldest evicted) and persisted.
type DriftReport struct {
	ID              string       `json:"id"`
	TimestampMs     int64        `json:"timestamp_ms"`
	Checks          []DriftCheck `json:"checks"`
	OverallDrift    int          `json:"overall_drift"` // Mean drift of error-free checks
	Severity        Severity     `json:"severity"`
	Trend           float64      `json:"trend"` // Regression slope over recent reports
	Recommendations []string     `json:"recommendations"`
	Partial         bool         `json:"partial"` // True when any check errored
}

// Validate checks if the DriftReport has valid field values.
func (r *DriftReport) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid report ID: not a valid UUID")
	}

	if err := r.Severity.Validate(); err != nil {
		return fmt.Errorf("invalid severity: %w", err)
	}

	if r.OverallDrift < 0 || r.OverallDrift > 100 {
		return fmt.Errorf("overall drift must be 0-100, got %d", r.OverallDrift)
	}

	return nil
}

// PatternType classifies a recurring violation pattern.
type PatternType string

const (
	// PatternDomainMismatch indicates vocabulary from a conflicting domain
	PatternDomainMismatch PatternType = "domain-mismatch"

	// PatternUserMisalignment indicates targeting of non-target user types
	PatternUserMisalignment PatternType = "user-misalignment"

	// PatternFeatureCreep indicates scope-expanding language on risky items
	PatternFeatureCreep PatternType = "feature-creep"

	// PatternNotThisViolation indicates a direct match against the NOT THIS list
	PatternNotThisViolation PatternType = "not-this-violation"

	// PatternTerminologyDrift indicates items written outside the project vocabulary
	PatternTerminologyDrift PatternType = "terminology-drift"
)

// Validate checks if the PatternType is a valid enum value.
func (t PatternType) Validate() error {
	switch t {
	case PatternDomainMismatch, PatternUserMisalignment, PatternFeatureCreep,
		PatternNotThisViolation, PatternTerminologyDrift:
		return nil
	default:
		return fmt.Errorf("unknown pattern type: %q", t)
	}
}

// MaxPatternExamples caps the example ring buffer on each pattern.
const MaxPatternExamples = 10

// PatternExample is a single observed instance of a violation pattern.
type PatternExample struct {
	Title      string `json:"title"`
	Confidence int    `json:"confidence"`
	SeenAtMs   int64  `json:"seen_at_ms"`
}

// ViolationPattern is a recurring category of confidence trigger, keyed by
// type plus signature and merged on every re-observation.
type ViolationPattern struct {
	Type          PatternType      `json:"type"`
	Signature     string           `json:"signature"` // The matched term, user type or phrase
	Industry      string           `json:"industry"`  // Industry the pattern was learned under
	TargetUser    string           `json:"target_user,omitempty"`
	Occurrences   int              `json:"occurrences"`
	AvgConfidence float64          `json:"avg_confidence"` // Running average over observations
	FirstSeenMs   int64            `json:"first_seen_ms"`
	LastSeenMs    int64            `json:"last_seen_ms"`
	Examples      []PatternExample `json:"examples"` // Ring buffer, cap MaxPatternExamples
}

// PatternKeyFor builds the store key for a pattern: type plus signature.
func PatternKeyFor(t PatternType, signature string) string {
	return string(t) + "/" + signature
}

// Key returns the store key for this pattern.
func (p *ViolationPattern) Key() string {
	return PatternKeyFor(p.Type, p.Signature)
}

// Observe merges a new observation into the pattern: increments occurrences,
// updates the running-average confidence, appends to the example ring buffer
// (oldest dropped beyond MaxPatternExamples) and advances LastSeen.
func (p *ViolationPattern) Observe(ex PatternExample) {
	p.Occurrences++
	p.AvgConfidence += (float64(ex.Confidence) - p.AvgConfidence) / float64(p.Occurrences)

	if p.FirstSeenMs == 0 {
		p.FirstSeenMs = ex.SeenAtMs
	}
	p.LastSeenMs = ex.SeenAtMs

	p.Examples = append(p.Examples, ex)
	if len(p.Examples) > MaxPatternExamples {
		p.Examples = p.Examples[len(p.Examples)-MaxPatternExamples:]
	}
}

// Impact classifies how significant a truth change is. It drives both the
// changelog category and the semver component that gets bumped.
type Impact string

const (
	// ImpactMajor indicates WhatWereBuilding or Industry changed
	ImpactMajor Impact = "major"

	// ImpactMinor indicates TargetUsers changed
	ImpactMinor Impact = "minor"

	// ImpactPatch indicates any other change
	ImpactPatch Impact = "patch"
)

// Validate checks if the Impact is a valid enum value.
func (i Impact) Validate() error {
	switch i {
	case ImpactMajor, ImpactMinor, ImpactPatch:
		return nil
	default:
		return fmt.Errorf("unknown impact: %q", i)
	}
}

// FieldChange records how a single truth field changed between versions.
// Scalar fields use Old/New; list fields use set-difference Added/Removed.
type FieldChange struct {
	Field   string   `json:"field"`
	Old     string   `json:"old,omitempty"`
	New     string   `json:"new,omitempty"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// TruthVersion is an immutable snapshot of the project truth. History is
// append-only: prior versions are never edited, rollback creates a new
// version whose content equals the target's.
type TruthVersion struct {
	ID          string        `json:"id"`     // UUID
	Number      string        `json:"number"` // Semver assigned to this version
	TimestampMs int64         `json:"timestamp_ms"`
	Author      string        `json:"author"`
	Reason      string        `json:"reason"`
	Impact      Impact        `json:"impact"`
	Changes     []FieldChange `json:"changes"`
	ContentHash string        `json:"content_hash"` // sha256 of the rendered truth document
	Truth       ProjectTruth  `json:"truth"`
}

// Validate checks if the TruthVersion has valid field values.
func (v *TruthVersion) Validate() error {
	if !isValidUUID(v.ID) {
		return fmt.Errorf("invalid version ID: not a valid UUID")
	}

	if v.Number == "" {
		return fmt.Errorf("version number cannot be empty")
	}

	if err := v.Impact.Validate(); err != nil {
		return fmt.Errorf("invalid impact: %w", err)
	}

	if v.ContentHash == "" {
		return fmt.Errorf("content hash cannot be empty")
	}

	return nil
}

// ChangelogEntry is a single append-only changelog record for a truth version.
type ChangelogEntry struct {
	VersionID   string `json:"version_id"`
	Number      string `json:"number"`
	Impact      Impact `json:"impact"`
	Reason      string `json:"reason"`
	Author      string `json:"author"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Strategy is the resolution workflow selected for a drift report.
// It is a pure function of severity.
type Strategy string

const (
	// StrategyEmergency is the full-stop response to critical drift
	StrategyEmergency Strategy = "emergency"

	// StrategyIntervention pauses non-critical work for major drift
	StrategyIntervention Strategy = "intervention"

	// StrategyCollaborative convenes a structured review for moderate drift
	StrategyCollaborative Strategy = "collaborative"

	// StrategyInformational records awareness for low drift, non-blocking
	StrategyInformational Strategy = "informational"
)

// Validate checks if the Strategy is a valid enum value.
func (s Strategy) Validate() error {
	switch s {
	case StrategyEmergency, StrategyIntervention, StrategyCollaborative, StrategyInformational:
		return nil
	default:
		return fmt.Errorf("unknown strategy: %q", s)
	}
}

// StrategyForSeverity maps a drift severity to a resolution strategy:
// critical to emergency, major to intervention, moderate to collaborative,
// everything else to informational.
func StrategyForSeverity(s Severity) Strategy {
	switch s {
	case SeverityCritical:
		return StrategyEmergency
	case SeverityMajor:
		return StrategyIntervention
	case SeverityModerate:
		return StrategyCollaborative
	default:
		return StrategyInformational
	}
}

// ResolutionStatus is the lifecycle state of a resolution workflow.
// Lifecycle: initiated, then the strategy-specific active state, then
// completed, then archived.
type ResolutionStatus string

const (
	// ResolutionInitiated indicates the resolution has been created
	ResolutionInitiated ResolutionStatus = "initiated"

	// ResolutionEmergencyActive indicates the emergency sequence is running
	ResolutionEmergencyActive ResolutionStatus = "emergency-response-active"

	// ResolutionInterventionInProgress indicates the intervention sequence is running
	ResolutionInterventionInProgress ResolutionStatus = "intervention-in-progress"

	// ResolutionCollaborativeReview indicates the collaborative sequence is running
	ResolutionCollaborativeReview ResolutionStatus = "collaborative-review"

	// ResolutionMonitoring indicates an informational resolution is observing
	ResolutionMonitoring ResolutionStatus = "monitoring"

	// ResolutionCompleted indicates the workflow was explicitly completed
	ResolutionCompleted ResolutionStatus = "completed"

	// ResolutionArchived indicates the completed workflow has been archived
	ResolutionArchived ResolutionStatus = "archived"
)

// Validate checks if the ResolutionStatus is a valid enum value.
func (s ResolutionStatus) Validate() error {
	switch s {
	case ResolutionInitiated, ResolutionEmergencyActive, ResolutionInterventionInProgress,
		ResolutionCollaborativeReview, ResolutionMonitoring, ResolutionCompleted, ResolutionArchived:
		return nil
	default:
		return fmt.Errorf("unknown resolution status: %q", s)
	}
}

// ActiveStatusForStrategy returns the strategy-specific active state a
// resolution enters after initiation.
func ActiveStatusForStrategy(s Strategy) ResolutionStatus {
	switch s {
	case StrategyEmergency:
		return ResolutionEmergencyActive
	case StrategyIntervention:
		return ResolutionInterventionInProgress
	case StrategyCollaborative:
		return ResolutionCollaborativeReview
	default:
		return ResolutionMonitoring
	}
}

// ResolutionAction is one entry in a resolution's action log. Actions are
// best-effort: a failed action records OK=false and the sequence continues.
type ResolutionAction struct {
	Name   string `json:"name"`
	AtMs   int64  `json:"at_ms"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Resolution is a tracked workflow executed in response to a drift report.
type Resolution struct {
	ID            string             `json:"id"` // UUID
	Report        DriftReport        `json:"report"`
	Strategy      Strategy           `json:"strategy"`
	Status        ResolutionStatus   `json:"status"`
	Actions       []ResolutionAction `json:"actions"`
	Participants  []string           `json:"participants"`
	Outcome       string             `json:"outcome,omitempty"`
	LearningTags  []string           `json:"learning_tags,omitempty"`
	CreatedAtMs   int64              `json:"created_at_ms"`
	CompletedAtMs int64              `json:"completed_at_ms,omitempty"`
}

// Validate checks if the Resolution has valid field values.
func (r *Resolution) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid resolution ID: not a valid UUID")
	}

	if err := r.Strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	if err := r.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	return nil
}

// Escalation is a persisted record of a major or critical drift report.
type Escalation struct {
	ID           string   `json:"id"`
	ReportID     string   `json:"report_id"`
	Severity     Severity `json:"severity"`
	OverallDrift int      `json:"overall_drift"`
	Note         string   `json:"note"`
	CreatedAtMs  int64    `json:"created_at_ms"`
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
