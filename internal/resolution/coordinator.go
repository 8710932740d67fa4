// Package resolution implements the drift resolution coordinator. A drift
// report at or above moderate severity is turned into a tracked workflow:
// the strategy is a pure function of severity, and each strategy runs a fixed
// best-effort action sequence. A failing action is recorded with OK=false
// and the sequence continues - resolution never aborts halfway.
package resolution

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/keel/pkg/ledger"
)

// Priority due-date offsets for intervention task assignments.
const (
	dueCritical = 24 * time.Hour
	dueHigh     = 48 * time.Hour
	dueMedium   = 5 * 24 * time.Hour
	dueDefault  = 7 * 24 * time.Hour
)

// quickResolutionWindow is how fast a resolution must complete to earn the
// quick-resolution learning tag.
const quickResolutionWindow = time.Hour

// checkAttentionThreshold is the per-check drift above which a check gets its
// own recommendation or task in a sequence.
const checkAttentionThreshold = 40

// Coordinator turns drift reports into tracked resolution workflows.
type Coordinator struct {
	client       *ledger.Client
	stakeholders []string
	nowFn        func() time.Time
}

// NewCoordinator creates a coordinator. stakeholders are notified (by name,
// in the action log) during emergency and intervention sequences.
func NewCoordinator(client *ledger.Client, stakeholders []string) *Coordinator {
	return &Coordinator{
		client:       client,
		stakeholders: stakeholders,
		nowFn:        time.Now,
	}
}

// Initiate creates a resolution for the report, selects the strategy from
// its severity and runs the strategy's action sequence. The resolution is
// persisted in its initiated state before any action runs, so a crash
// mid-sequence leaves a visible record.
func (c *Coordinator) Initiate(ctx context.Context, report *ledger.DriftReport) (*ledger.Resolution, error) {
	if report == nil {
		return nil, fmt.Errorf("report is required")
	}

	strategy := ledger.StrategyForSeverity(report.Severity)
	res := &ledger.Resolution{
		ID:           uuid.New().String(),
		Report:       *report,
		Strategy:     strategy,
		Status:       ledger.ResolutionInitiated,
		Participants: c.participants(strategy),
		CreatedAtMs:  c.nowFn().UnixMilli(),
	}

	if err := c.client.PutResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to persist resolution: %w", err)
	}

	res.Status = ledger.ActiveStatusForStrategy(strategy)
	c.runSequence(ctx, res)

	if err := c.client.PutResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to persist resolution actions: %w", err)
	}

	log.Printf("[Resolution] Initiated %s resolution %s for report %s (%d actions)",
		strategy, res.ID, report.ID, len(res.Actions))
	return res, nil
}

// Complete finishes a resolution: clears the blocked flag for blocking
// strategies, derives learning tags from the report and archives the action
// log. An unknown resolution ID is an explicit error.
func (c *Coordinator) Complete(ctx context.Context, resolutionID, outcome string) (*ledger.Resolution, error) {
	res, err := c.client.GetResolution(ctx, resolutionID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, fmt.Errorf("resolution %s not found", resolutionID)
		}
		return nil, fmt.Errorf("failed to load resolution: %w", err)
	}

	if res.Status == ledger.ResolutionCompleted || res.Status == ledger.ResolutionArchived {
		return nil, fmt.Errorf("resolution %s is already completed", resolutionID)
	}

	if res.Strategy == ledger.StrategyEmergency || res.Strategy == ledger.StrategyIntervention {
		if err := c.client.ClearBlocked(ctx); err != nil {
			log.Printf("[Resolution] Failed to clear blocked flag for %s: %v", resolutionID, err)
		}
	}

	now := c.nowFn()
	res.Status = ledger.ResolutionCompleted
	res.Outcome = outcome
	res.CompletedAtMs = now.UnixMilli()
	res.LearningTags = learningTags(res, now)

	if err := c.client.PutResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to persist completed resolution: %w", err)
	}

	res.Status = ledger.ResolutionArchived
	if err := c.client.PutResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to archive resolution: %w", err)
	}

	log.Printf("[Resolution] Completed resolution %s: %s", resolutionID, outcome)
	return res, nil
}

// Get returns a stored resolution by ID.
func (c *Coordinator) Get(ctx context.Context, resolutionID string) (*ledger.Resolution, error) {
	res, err := c.client.GetResolution(ctx, resolutionID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, fmt.Errorf("resolution %s not found", resolutionID)
		}
		return nil, err
	}
	return res, nil
}

// List returns all stored resolutions.
func (c *Coordinator) List(ctx context.Context) ([]*ledger.Resolution, error) {
	return c.client.ListResolutions(ctx)
}

func (c *Coordinator) participants(strategy ledger.Strategy) []string {
	switch strategy {
	case ledger.StrategyEmergency, ledger.StrategyIntervention, ledger.StrategyCollaborative:
		return append([]string{}, c.stakeholders...)
	default:
		return nil
	}
}

func (c *Coordinator) runSequence(ctx context.Context, res *ledger.Resolution) {
	switch res.Strategy {
	case ledger.StrategyEmergency:
		c.runEmergency(ctx, res)
	case ledger.StrategyIntervention:
		c.runIntervention(ctx, res)
	case ledger.StrategyCollaborative:
		c.runCollaborative(res)
	default:
		c.runInformational(res)
	}
}

// record appends an action outcome to the resolution's action log. Failures
// are logged here so every sequence stays best-effort.
func (c *Coordinator) record(res *ledger.Resolution, name string, err error, detail string) {
	action := ledger.ResolutionAction{
		Name:   name,
		AtMs:   c.nowFn().UnixMilli(),
		OK:     err == nil,
		Detail: detail,
	}
	if err != nil {
		action.Detail = err.Error()
		log.Printf("[Resolution] Action %q failed for %s: %v", name, res.ID, err)
	}
	res.Actions = append(res.Actions, action)
}

func (c *Coordinator) runEmergency(ctx context.Context, res *ledger.Resolution) {
	c.record(res, "create escalation document", nil,
		fmt.Sprintf("critical drift %d across %d checks", res.Report.OverallDrift, len(res.Report.Checks)))

	err := c.client.SetBlocked(ctx, fmt.Sprintf("emergency resolution %s: drift %d", res.ID, res.Report.OverallDrift))
	c.record(res, "block new work", err, "global blocked flag set")

	c.record(res, "notify all stakeholders", nil, strings.Join(res.Participants, ", "))

	c.record(res, "create phased action plan", nil,
		"immediate: stop work touching drifted categories; "+
			"24h: alignment session with all stakeholders; "+
			"this week: re-verify backlog against the truth")
}

func (c *Coordinator) runIntervention(ctx context.Context, res *ledger.Resolution) {
	c.record(res, "record review meeting", nil,
		fmt.Sprintf("major drift %d, review required before next sprint", res.Report.OverallDrift))

	err := c.client.SetBlocked(ctx, fmt.Sprintf("intervention resolution %s: non-critical work paused", res.ID))
	c.record(res, "pause non-critical work", err, "global blocked flag set")

	c.record(res, "assign priority tasks", nil, c.taskAssignments(&res.Report))

	c.record(res, "notify key stakeholders", nil, strings.Join(res.Participants, ", "))
}

func (c *Coordinator) runCollaborative(res *ledger.Resolution) {
	c.record(res, "open discussion thread", nil,
		fmt.Sprintf("moderate drift %d, structured review", res.Report.OverallDrift))

	c.record(res, "run role analysis", nil,
		"product owner: confirm scope; tech lead: review recent items; team: surface causes")

	for i := range res.Report.Checks {
		check := &res.Report.Checks[i]
		if check.Drift >= checkAttentionThreshold {
			c.record(res, "recommend category review", nil,
				fmt.Sprintf("%s: drift %d over %d items", check.Name, check.Drift, check.SampleSize))
		}
	}

	c.record(res, "schedule follow-up tasks", nil, "re-check drift after the next cycle")
}

func (c *Coordinator) runInformational(res *ledger.Resolution) {
	c.record(res, "log awareness note", nil,
		fmt.Sprintf("drift %d (%s), monitoring only, no work blocked", res.Report.OverallDrift, res.Report.Severity))
}

// taskAssignments builds the priority-dated task list for an intervention:
// every check above the attention threshold gets a task with a due date
// scaled to its drift level.
func (c *Coordinator) taskAssignments(report *ledger.DriftReport) string {
	now := c.nowFn()
	var tasks []string
	for i := range report.Checks {
		check := &report.Checks[i]
		if check.Drift < checkAttentionThreshold {
			continue
		}
		due := now.Add(dueFor(check.Drift)).Format("2006-01-02")
		tasks = append(tasks, fmt.Sprintf("realign %s (drift %d, due %s)", check.Name, check.Drift, due))
	}
	if len(tasks) == 0 {
		return "no category exceeded the attention threshold"
	}
	return strings.Join(tasks, "; ")
}

func dueFor(drift int) time.Duration {
	switch {
	case drift >= 80:
		return dueCritical
	case drift >= 60:
		return dueHigh
	case drift >= checkAttentionThreshold:
		return dueMedium
	default:
		return dueDefault
	}
}

// learningTags derives tags for the learning system from a completed
// resolution: which categories misaligned, whether the drift was severe and
// whether the resolution was quick.
func learningTags(res *ledger.Resolution, completedAt time.Time) []string {
	var tags []string
	for i := range res.Report.Checks {
		check := &res.Report.Checks[i]
		if check.Drift >= checkAttentionThreshold {
			tags = append(tags, "misaligned-"+check.Name)
		}
	}
	if res.Report.Severity.AtLeast(ledger.SeverityMajor) {
		tags = append(tags, "severe-drift")
	}
	if completedAt.Sub(time.UnixMilli(res.CreatedAtMs)) <= quickResolutionWindow {
		tags = append(tags, "quick-resolution")
	}
	return tags
}
