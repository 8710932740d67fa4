package learning

import (
	"context"
	"fmt"
	"sort"

	"github.com/dyluth/keel/pkg/ledger"
)

// maxCommonViolations caps the ranked violation list in insights.
const maxCommonViolations = 5

// recurringThreshold is the occurrence count at which a pattern is called out
// as recurring in the recommendations.
const recurringThreshold = 3

// ViolationSummary is one ranked entry in the insights report.
type ViolationSummary struct {
	Type          ledger.PatternType `json:"type"`
	Signature     string             `json:"signature"`
	Occurrences   int                `json:"occurrences"`
	AvgConfidence float64            `json:"avg_confidence"`
}

// Insights summarises the learned patterns relevant to the current truth.
type Insights struct {
	TotalPatterns        int                `json:"total_patterns"`
	CommonViolations     []ViolationSummary `json:"common_violations"`
	PreventionStrategies []string           `json:"prevention_strategies"`
	RiskFactors          []string           `json:"risk_factors"`
	Recommendations      []string           `json:"recommendations"`
}

// ProjectInsights builds an insights report from the stored patterns.
// Patterns are filtered to those relevant to the given truth: learned under
// the same industry or primary user, or of a type that applies regardless of
// truth content (feature creep, terminology drift).
func (s *System) ProjectInsights(ctx context.Context, truth *ledger.ProjectTruth) (*Insights, error) {
	if truth == nil {
		return nil, fmt.Errorf("truth is required")
	}

	patterns, err := s.client.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}

	relevant := make([]*ledger.ViolationPattern, 0, len(patterns))
	for _, p := range patterns {
		if isRelevant(p, truth) {
			relevant = append(relevant, p)
		}
	}

	// Rank by occurrences, then key for a stable order.
	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].Occurrences != relevant[j].Occurrences {
			return relevant[i].Occurrences > relevant[j].Occurrences
		}
		return relevant[i].Key() < relevant[j].Key()
	})

	insights := &Insights{
		TotalPatterns: len(relevant),
		RiskFactors:   riskFactors(truth),
	}

	seenTypes := make(map[ledger.PatternType]bool)
	for _, p := range relevant {
		if len(insights.CommonViolations) < maxCommonViolations {
			insights.CommonViolations = append(insights.CommonViolations, ViolationSummary{
				Type:          p.Type,
				Signature:     p.Signature,
				Occurrences:   p.Occurrences,
				AvgConfidence: p.AvgConfidence,
			})
		}

		if !seenTypes[p.Type] {
			seenTypes[p.Type] = true
			insights.PreventionStrategies = append(insights.PreventionStrategies, preventionStrategy(p.Type, truth))
		}

		if p.Occurrences >= recurringThreshold {
			insights.Recommendations = append(insights.Recommendations,
				fmt.Sprintf("pattern %s has recurred %d times - address its root cause", p.Key(), p.Occurrences))
		}
	}

	if len(relevant) == 0 {
		insights.Recommendations = append(insights.Recommendations,
			"no violation patterns learned yet - keep verifying items to build history")
	}

	return insights, nil
}

func isRelevant(p *ledger.ViolationPattern, truth *ledger.ProjectTruth) bool {
	switch p.Type {
	case ledger.PatternFeatureCreep, ledger.PatternTerminologyDrift:
		return true
	}
	return p.Industry == truth.Industry || p.TargetUser == truth.TargetUsers.Primary
}

// riskFactors flags completeness gaps in the truth itself: missing sections
// weaken the detectors that depend on them.
func riskFactors(truth *ledger.ProjectTruth) []string {
	var factors []string
	if len(truth.NotThis) == 0 {
		factors = append(factors, "NOT THIS list is empty - hard exclusions cannot be enforced")
	}
	if len(truth.Competitors) < 2 {
		factors = append(factors, "fewer than two competitors recorded - competitor overlap detection is weak")
	}
	if len(truth.DomainTerms) == 0 {
		factors = append(factors, "no domain terms recorded - terminology drift cannot be measured well")
	}
	if len(truth.TargetUsers.Secondary) == 0 {
		factors = append(factors, "no secondary users recorded - user alignment checks only the primary audience")
	}
	return factors
}

func preventionStrategy(t ledger.PatternType, truth *ledger.ProjectTruth) string {
	switch t {
	case ledger.PatternDomainMismatch:
		return fmt.Sprintf("keep item language inside the %s domain vocabulary", truth.Industry)
	case ledger.PatternUserMisalignment:
		return fmt.Sprintf("write items for %s rather than other audiences", truth.TargetUsers.Primary)
	case ledger.PatternFeatureCreep:
		return "split scope-expanding items into separate proposals before estimating them"
	case ledger.PatternNotThisViolation:
		return "check new items against the NOT THIS list before writing them up"
	case ledger.PatternTerminologyDrift:
		return "reuse the truth's domain terms when writing items"
	default:
		return "review recurring violations with the team"
	}
}
