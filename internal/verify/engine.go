// Package verify implements per-item and batch verification of work items
// against the project truth. Verification scores items via the confidence
// scorer and maps confidence to a status through the fixed ladder; blocked
// and review results are forwarded to the learning system on a best-effort
// basis - a learning failure never fails verification.
package verify

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dyluth/keel/internal/scoring"
	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/pkg/ledger"
)

// Learner receives blocked/review verification results for pattern learning.
// Implementations must tolerate concurrent calls.
type Learner interface {
	LearnFromViolation(ctx context.Context, result *ledger.VerificationResult, truth *ledger.ProjectTruth) error
}

// Engine verifies work items against the project truth.
type Engine struct {
	client  *ledger.Client
	truths  *truth.Store
	scorer  *scoring.Scorer
	learner Learner
	nowFn   func() time.Time
}

// NewEngine creates a verification engine. learner may be nil, in which case
// blocked/review results are only published as violation events.
func NewEngine(client *ledger.Client, truths *truth.Store, learner Learner) *Engine {
	return &Engine{
		client:  client,
		truths:  truths,
		scorer:  scoring.New(),
		learner: learner,
		nowFn:   time.Now,
	}
}

// BatchError captures a single item failure inside a batch verification.
type BatchError struct {
	ItemID string `json:"item_id"`
	Err    string `json:"err"`
}

// BatchResult is the outcome of verifying a set of items. Every item is
// verified independently; per-item failures are captured in Errors and the
// batch continues. Partial is true when any item errored.
type BatchResult struct {
	Results     []ledger.VerificationResult `json:"results"`
	Errors      []BatchError                `json:"errors,omitempty"`
	PurityScore int                         `json:"purity_score"` // aligned/total x 100
	CanProceed  bool                        `json:"can_proceed"`  // false if any item is blocked
	Partial     bool                        `json:"partial"`
}

// VerifyItem verifies a single item against the project truth.
// When no truth exists the result is a warning with confidence 0 and no side
// effects. Blocked and review results are forwarded asynchronously to the
// learning system; that forwarding is best-effort and never affects the
// returned result.
func (e *Engine) VerifyItem(ctx context.Context, item *ledger.Item) (*ledger.VerificationResult, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item: %w", err)
	}

	projectTruth, err := e.truths.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load truth: %w", err)
	}

	if projectTruth == nil {
		return &ledger.VerificationResult{
			Item:           *item,
			Status:         ledger.StatusWarning,
			Confidence:     0,
			Message:        "no project truth exists - cannot verify alignment",
			Recommendation: "create the project truth document before verifying work",
			VerifiedAtMs:   e.nowFn().UnixMilli(),
		}, nil
	}

	// Learned patterns sharpen the historical dimension. Losing them to a
	// storage failure degrades scoring, it does not fail verification.
	patterns, err := e.client.ListPatterns(ctx)
	if err != nil {
		log.Printf("[Verify] Failed to load patterns, scoring without history: %v", err)
		patterns = nil
	}

	score := e.scorer.Score(item, projectTruth, patterns)
	status := ledger.StatusForConfidence(score.Total)

	result := &ledger.VerificationResult{
		Item:           *item,
		Status:         status,
		Confidence:     score.Total,
		Score:          score,
		Message:        messageFor(status, score),
		Recommendation: recommendationFor(status),
		VerifiedAtMs:   e.nowFn().UnixMilli(),
	}

	if status == ledger.StatusBlocked || status == ledger.StatusReview {
		e.forwardViolation(result, projectTruth)
	}

	return result, nil
}

// VerifyBacklog verifies every backlog item independently.
func (e *Engine) VerifyBacklog(ctx context.Context) (*BatchResult, error) {
	items, err := e.client.Items(ctx, ledger.CategoryBacklog)
	if err != nil {
		return nil, fmt.Errorf("failed to load backlog: %w", err)
	}
	return e.verifyAll(ctx, items), nil
}

// VerifySprintTasks verifies every task in a sprint independently.
// CanProceed is false if any task is blocked.
func (e *Engine) VerifySprintTasks(ctx context.Context, sprintID string) (*BatchResult, error) {
	items, err := e.client.SprintItems(ctx, sprintID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sprint %s: %w", sprintID, err)
	}
	return e.verifyAll(ctx, items), nil
}

// verifyAll verifies each item with no short-circuit: a failing item is
// recorded and the rest of the batch still runs.
func (e *Engine) verifyAll(ctx context.Context, items []ledger.Item) *BatchResult {
	batch := &BatchResult{CanProceed: true}

	aligned := 0
	for i := range items {
		result, err := e.VerifyItem(ctx, &items[i])
		if err != nil {
			batch.Errors = append(batch.Errors, BatchError{ItemID: items[i].ID, Err: err.Error()})
			batch.Partial = true
			continue
		}

		batch.Results = append(batch.Results, *result)
		if result.Status == ledger.StatusAllowed {
			aligned++
		}
		if result.Status == ledger.StatusBlocked {
			batch.CanProceed = false
		}
	}

	if len(batch.Results) > 0 {
		batch.PurityScore = int(math.Round(float64(aligned) / float64(len(batch.Results)) * 100))
	}

	return batch
}

// forwardViolation hands a blocked/review result to the learning system and
// publishes it as a violation event. Both are fire-and-forget: failures are
// logged and the verification result stands.
func (e *Engine) forwardViolation(result *ledger.VerificationResult, projectTruth *ledger.ProjectTruth) {
	resultCopy := *result
	truthCopy := *projectTruth

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Verify] Learning forward panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if e.learner != nil {
			if err := e.learner.LearnFromViolation(ctx, &resultCopy, &truthCopy); err != nil {
				log.Printf("[Verify] Learning failed for item %s: %v", resultCopy.Item.ID, err)
			}
		}

		if err := e.client.PublishViolation(ctx, &resultCopy); err != nil {
			log.Printf("[Verify] Failed to publish violation event: %v", err)
		}
	}()
}

func messageFor(status ledger.Status, score ledger.ConfidenceScore) string {
	switch status {
	case ledger.StatusBlocked:
		return fmt.Sprintf("hard violation of project truth (%s)", score.Reason)
	case ledger.StatusReview:
		return fmt.Sprintf("probable misalignment, needs review (%s)", score.Reason)
	case ledger.StatusWarning:
		return fmt.Sprintf("possible misalignment (%s)", score.Reason)
	default:
		return "aligns with project truth"
	}
}

func recommendationFor(status ledger.Status) string {
	switch status {
	case ledger.StatusBlocked:
		return "do not proceed - this work contradicts the project truth"
	case ledger.StatusReview:
		return "get an explicit decision before starting this work"
	case ledger.StatusWarning:
		return "double-check this item against the truth document"
	default:
		return ""
	}
}
