// Package version implements the truth version manager. Versions are
// immutable snapshots in an append-only history: every change to the truth,
// including a rollback, creates a new version. The current-version cursor
// only advances through a compare-and-swap against the previous document's
// content hash, so concurrent writers cannot silently overwrite each other.
package version

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/pkg/ledger"
)

// Diff field names, stable across versions so changelog consumers can key on
// them.
const (
	FieldBuilding       = "what_were_building"
	FieldIndustry       = "industry"
	FieldPrimaryUser    = "target_users.primary"
	FieldSecondaryUsers = "target_users.secondary"
	FieldNotThis        = "not_this"
	FieldCompetitors    = "competitors"
	FieldDomainTerms    = "domain_terms"
)

// ErrNoChanges is returned when a proposed truth is identical to the current
// one - there is nothing to version.
var ErrNoChanges = errors.New("proposed truth is identical to the current one")

// Manager creates, inspects and rolls back truth versions.
type Manager struct {
	client *ledger.Client
	nowFn  func() time.Time
}

// NewManager creates a version manager backed by the given ledger client.
func NewManager(client *ledger.Client) *Manager {
	return &Manager{
		client: client,
		nowFn:  time.Now,
	}
}

// CreateVersion diffs the proposed truth against the current one, assigns the
// next semver by impact and commits the new version atomically. Returns
// ledger.ErrConflict when the truth changed underneath the caller; retry by
// re-reading and re-proposing.
func (m *Manager) CreateVersion(ctx context.Context, proposed *ledger.ProjectTruth, reason, author string) (*ledger.TruthVersion, error) {
	return m.createVersion(ctx, proposed, reason, author, "")
}

// createVersion is CreateVersion with an optional impact override. An empty
// forcedImpact derives the impact from the field diff.
func (m *Manager) createVersion(ctx context.Context, proposed *ledger.ProjectTruth, reason, author string, forcedImpact ledger.Impact) (*ledger.TruthVersion, error) {
	if reason == "" {
		return nil, fmt.Errorf("change reason cannot be empty")
	}

	doc, currentHash, err := m.client.GetTruthDoc(ctx)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, fmt.Errorf("no truth document exists: create one first")
		}
		return nil, fmt.Errorf("failed to load current truth: %w", err)
	}

	current, err := truth.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse current truth: %w", err)
	}

	changes := Diff(current, proposed)
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}

	impact := forcedImpact
	if impact == "" {
		impact = impactOf(changes)
	}
	number, err := bump(current.Version, impact)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version number: %w", err)
	}

	next := *proposed
	next.Version = number
	next.LastVerifiedMs = m.nowFn().UnixMilli()
	nextDoc := truth.Render(&next)

	version := &ledger.TruthVersion{
		ID:          uuid.New().String(),
		Number:      number,
		TimestampMs: next.LastVerifiedMs,
		Author:      author,
		Reason:      reason,
		Impact:      impact,
		Changes:     changes,
		ContentHash: ledger.ContentHash(nextDoc),
		Truth:       next,
	}

	if err := m.client.CommitVersion(ctx, version, currentHash, nextDoc); err != nil {
		return nil, err
	}

	return version, nil
}

// RollbackToVersion restores the content of a prior version by creating a
// new version whose truth fields deep-equal the target's. History is never
// edited in place. A rollback rewrites the truth wholesale regardless of how
// small the field diff happens to be, so it always takes a major bump.
func (m *Manager) RollbackToVersion(ctx context.Context, versionID, reason, author string) (*ledger.TruthVersion, error) {
	target, err := m.client.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rollback target: %w", err)
	}

	if reason == "" {
		reason = fmt.Sprintf("rollback to version %s", target.Number)
	}

	restored := target.Truth
	created, err := m.createVersion(ctx, &restored, reason, author, ledger.ImpactMajor)
	if err != nil {
		if errors.Is(err, ErrNoChanges) {
			return nil, fmt.Errorf("truth already matches version %s", target.Number)
		}
		return nil, err
	}

	return created, nil
}

// CompareVersions diffs two stored versions field by field, oldest argument
// first.
func (m *Manager) CompareVersions(ctx context.Context, fromID, toID string) ([]ledger.FieldChange, error) {
	from, err := m.client.GetVersion(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", fromID, err)
	}

	to, err := m.client.GetVersion(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", toID, err)
	}

	return Diff(&from.Truth, &to.Truth), nil
}

// GetVersion returns the stored snapshot for a version ID.
func (m *Manager) GetVersion(ctx context.Context, versionID string) (*ledger.TruthVersion, error) {
	return m.client.GetVersion(ctx, versionID)
}

// History returns all versions oldest first.
func (m *Manager) History(ctx context.Context) ([]*ledger.TruthVersion, error) {
	return m.client.ListVersions(ctx)
}

// Changelog returns the append-only changelog, oldest first.
func (m *Manager) Changelog(ctx context.Context) ([]ledger.ChangelogEntry, error) {
	return m.client.Changelog(ctx)
}

// Diff compares two truths field by field. Scalar fields report old/new;
// list fields report set-difference added/removed. Version and verification
// timestamps are bookkeeping, not content, and are ignored.
func Diff(before, after *ledger.ProjectTruth) []ledger.FieldChange {
	var changes []ledger.FieldChange

	if before.WhatWereBuilding != after.WhatWereBuilding {
		changes = append(changes, ledger.FieldChange{
			Field: FieldBuilding, Old: before.WhatWereBuilding, New: after.WhatWereBuilding,
		})
	}
	if before.Industry != after.Industry {
		changes = append(changes, ledger.FieldChange{
			Field: FieldIndustry, Old: before.Industry, New: after.Industry,
		})
	}
	if before.TargetUsers.Primary != after.TargetUsers.Primary {
		changes = append(changes, ledger.FieldChange{
			Field: FieldPrimaryUser, Old: before.TargetUsers.Primary, New: after.TargetUsers.Primary,
		})
	}

	if added, removed := listDiff(before.TargetUsers.Secondary, after.TargetUsers.Secondary); len(added)+len(removed) > 0 {
		changes = append(changes, ledger.FieldChange{Field: FieldSecondaryUsers, Added: added, Removed: removed})
	}
	if added, removed := listDiff(before.NotThis, after.NotThis); len(added)+len(removed) > 0 {
		changes = append(changes, ledger.FieldChange{Field: FieldNotThis, Added: added, Removed: removed})
	}
	if added, removed := listDiff(competitorStrings(before.Competitors), competitorStrings(after.Competitors)); len(added)+len(removed) > 0 {
		changes = append(changes, ledger.FieldChange{Field: FieldCompetitors, Added: added, Removed: removed})
	}
	if added, removed := listDiff(termStrings(before.DomainTerms), termStrings(after.DomainTerms)); len(added)+len(removed) > 0 {
		changes = append(changes, ledger.FieldChange{Field: FieldDomainTerms, Added: added, Removed: removed})
	}

	return changes
}

// impactOf classifies a change set: identity fields are major, audience is
// minor, everything else is patch.
func impactOf(changes []ledger.FieldChange) ledger.Impact {
	impact := ledger.ImpactPatch
	for _, c := range changes {
		switch c.Field {
		case FieldBuilding, FieldIndustry:
			return ledger.ImpactMajor
		case FieldPrimaryUser, FieldSecondaryUsers:
			impact = ledger.ImpactMinor
		}
	}
	return impact
}

// bump advances a semver number by impact tier.
func bump(number string, impact ledger.Impact) (string, error) {
	parts := strings.Split(number, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid version number %q", number)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid version number %q", number)
		}
		nums[i] = n
	}

	switch impact {
	case ledger.ImpactMajor:
		return fmt.Sprintf("%d.0.0", nums[0]+1), nil
	case ledger.ImpactMinor:
		return fmt.Sprintf("%d.%d.0", nums[0], nums[1]+1), nil
	default:
		return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]+1), nil
	}
}

func listDiff(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, v := range before {
		beforeSet[v] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, v := range after {
		afterSet[v] = true
	}

	for _, v := range after {
		if !beforeSet[v] {
			added = append(added, v)
		}
	}
	for _, v := range before {
		if !afterSet[v] {
			removed = append(removed, v)
		}
	}
	return added, removed
}

func competitorStrings(competitors []ledger.Competitor) []string {
	out := make([]string, 0, len(competitors))
	for _, c := range competitors {
		out = append(out, c.Name+": "+c.Description)
	}
	return out
}

func termStrings(terms []ledger.DomainTerm) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, t.Term+": "+t.Definition)
	}
	return out
}
