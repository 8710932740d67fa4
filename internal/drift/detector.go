// Package drift implements the periodic drift detector. A cycle samples a
// bounded recent window of each artifact category, scores the samples through
// the verification engine and aggregates the result into a persisted,
// severity-ranked drift report. Reports at or above moderate severity are
// handed to the resolution coordinator.
package drift

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/keel/internal/verify"
	"github.com/dyluth/keel/pkg/ledger"
)

// DefaultSampleWindow bounds how many recent items each check scores.
const DefaultSampleWindow = 10

// trendWindow is how many reports (including the current one) feed the
// least-squares trend slope.
const trendWindow = 5

// Check names, fixed across cycles so history stays comparable.
const (
	CheckBacklog     = "backlog"
	CheckDocuments   = "documents"
	CheckCommits     = "commits"
	CheckSprintGoals = "sprint-goals"
	CheckDecisions   = "decisions"
)

// Resolver receives drift reports that warrant a resolution workflow.
type Resolver interface {
	Initiate(ctx context.Context, report *ledger.DriftReport) (*ledger.Resolution, error)
}

// Detector runs drift cycles, either manually or on a monitoring interval.
// Cycles are strictly sequential: a cycle fully persists its report before
// the next one can fire.
type Detector struct {
	client       *ledger.Client
	engine       *verify.Engine
	resolver     Resolver
	sampleWindow int
	nowFn        func() time.Time
	publishFn    func(ctx context.Context, report *ledger.DriftReport) error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewDetector creates a drift detector. resolver may be nil, in which case
// reports are persisted and published but never escalate into resolutions.
func NewDetector(client *ledger.Client, engine *verify.Engine, resolver Resolver, sampleWindow int) *Detector {
	if sampleWindow <= 0 {
		sampleWindow = DefaultSampleWindow
	}
	return &Detector{
		client:       client,
		engine:       engine,
		resolver:     resolver,
		sampleWindow: sampleWindow,
		nowFn:        time.Now,
		publishFn:    client.PublishDriftReport,
	}
}

// StartMonitoring begins periodic drift cycles: one immediately, then one per
// interval until StopMonitoring is called or the context is cancelled.
// Returns an error if monitoring is already active.
func (d *Detector) StartMonitoring(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitoring interval must be positive, got %v", interval)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("monitoring is already active")
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.monitorLoop(monitorCtx, interval, d.done)

	log.Printf("[Drift] Monitoring started (interval %v)", interval)
	return nil
}

// StopMonitoring cancels the monitoring loop and waits for the in-flight
// cycle, if any, to finish. Safe to call when monitoring is not active.
func (d *Detector) StopMonitoring() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	done := d.done
	d.running = false
	d.mu.Unlock()

	cancel()
	<-done
	log.Printf("[Drift] Monitoring stopped")
}

func (d *Detector) monitorLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	d.runCycleLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycleLogged(ctx)
		}
	}
}

func (d *Detector) runCycleLogged(ctx context.Context) {
	report, err := d.RunCycle(ctx)
	if err != nil {
		log.Printf("[Drift] Cycle failed: %v", err)
		return
	}
	log.Printf("[Drift] Cycle complete: drift=%d severity=%s partial=%v",
		report.OverallDrift, report.Severity, report.Partial)
}

// RunCycle executes one full drift cycle: all five checks, aggregation,
// persistence, and the severity-gated handoffs. This is also the manual
// check path.
func (d *Detector) RunCycle(ctx context.Context) (*ledger.DriftReport, error) {
	checks := []ledger.DriftCheck{
		d.checkCategory(ctx, CheckBacklog, ledger.CategoryBacklog),
		d.checkCategory(ctx, CheckDocuments, ledger.CategoryDocument),
		d.checkCommits(),
		d.checkCategory(ctx, CheckSprintGoals, ledger.CategorySprintGoals),
		d.checkCategory(ctx, CheckDecisions, ledger.CategoryDecision),
	}

	overall, partial := aggregate(checks)
	severity := ledger.SeverityForDrift(overall)

	report := &ledger.DriftReport{
		ID:              uuid.New().String(),
		TimestampMs:     d.nowFn().UnixMilli(),
		Checks:          checks,
		OverallDrift:    overall,
		Severity:        severity,
		Recommendations: recommendations(severity, checks),
		Partial:         partial,
	}

	trend, err := d.trend(ctx, overall)
	if err != nil {
		// Trend is advisory; a history read failure does not sink the cycle.
		log.Printf("[Drift] Failed to compute trend: %v", err)
	} else {
		report.Trend = trend
	}

	if err := d.client.PushReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist drift report: %w", err)
	}

	// Notification is best-effort: a dropped event must not stop the
	// resolution handoff or escalation below.
	if err := d.publishFn(ctx, report); err != nil {
		log.Printf("[Drift] Failed to publish report %s: %v", report.ID, err)
	}

	if severity.AtLeast(ledger.SeverityModerate) && d.resolver != nil {
		if _, err := d.resolver.Initiate(ctx, report); err != nil {
			log.Printf("[Drift] Failed to initiate resolution for report %s: %v", report.ID, err)
		}
	}

	if severity.AtLeast(ledger.SeverityMajor) {
		esc := &ledger.Escalation{
			ID:           uuid.New().String(),
			ReportID:     report.ID,
			Severity:     severity,
			OverallDrift: overall,
			Note:         fmt.Sprintf("drift reached %s (overall %d)", severity, overall),
			CreatedAtMs:  d.nowFn().UnixMilli(),
		}
		if err := d.client.AppendEscalation(ctx, esc); err != nil {
			log.Printf("[Drift] Failed to persist escalation for report %s: %v", report.ID, err)
		}
	}

	return report, nil
}

// checkCategory samples the most recent items of one category and returns
// their mean verification confidence. An empty sample is zero drift: absence
// of artifacts is not drift.
func (d *Detector) checkCategory(ctx context.Context, name string, category ledger.Category) ledger.DriftCheck {
	items, err := d.client.RecentItems(ctx, category, d.sampleWindow)
	if err != nil {
		return ledger.DriftCheck{Name: name, Err: fmt.Sprintf("failed to sample items: %v", err)}
	}

	if len(items) == 0 {
		return ledger.DriftCheck{Name: name, Details: "no items to sample"}
	}

	sum := 0
	for i := range items {
		result, err := d.engine.VerifyItem(ctx, &items[i])
		if err != nil {
			return ledger.DriftCheck{Name: name, Err: fmt.Sprintf("failed to verify item %s: %v", items[i].ID, err)}
		}
		sum += result.Confidence
	}

	mean := int(math.Round(float64(sum) / float64(len(items))))
	return ledger.DriftCheck{
		Name:       name,
		Drift:      mean,
		SampleSize: len(items),
		Details:    fmt.Sprintf("sampled %d items, mean confidence %d", len(items), mean),
	}
}

// checkCommits is a permanent zero stub: commit history is outside the
// ledger, so this check always reports zero drift against an empty sample.
func (d *Detector) checkCommits() ledger.DriftCheck {
	return ledger.DriftCheck{
		Name:    CheckCommits,
		Details: "commit analysis not available",
	}
}

// aggregate computes the mean drift over error-free checks. All checks
// failing yields zero drift and Partial; any failure marks the report Partial.
func aggregate(checks []ledger.DriftCheck) (overall int, partial bool) {
	sum, counted := 0, 0
	for i := range checks {
		if checks[i].Failed() {
			partial = true
			continue
		}
		sum += checks[i].Drift
		counted++
	}

	if counted == 0 {
		return 0, true
	}
	return int(math.Round(float64(sum) / float64(counted))), partial
}

// trend returns the least-squares slope over the last reports plus the
// current overall value. Fewer than two points means no trend.
func (d *Detector) trend(ctx context.Context, current int) (float64, error) {
	previous, err := d.client.RecentReports(ctx, trendWindow-1)
	if err != nil {
		return 0, err
	}

	// RecentReports is newest first; build the series oldest to newest and
	// append the current cycle.
	values := make([]float64, 0, len(previous)+1)
	for i := len(previous) - 1; i >= 0; i-- {
		values = append(values, float64(previous[i].OverallDrift))
	}
	values = append(values, float64(current))

	return slope(values), nil
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func recommendations(severity ledger.Severity, checks []ledger.DriftCheck) []string {
	var recs []string

	switch severity {
	case ledger.SeverityCritical:
		recs = append(recs, "halt new work until the drift source is resolved")
	case ledger.SeverityMajor:
		recs = append(recs, "schedule an alignment review before the next sprint")
	case ledger.SeverityModerate:
		recs = append(recs, "review recent items with the team against the project truth")
	case ledger.SeverityMinor:
		recs = append(recs, "keep an eye on the flagged categories")
	}

	for i := range checks {
		if checks[i].Drift >= 40 {
			recs = append(recs, fmt.Sprintf("inspect the %s category (drift %d)", checks[i].Name, checks[i].Drift))
		}
	}

	return recs
}
