// Package truth loads, renders and persists the canonical project truth
// document. The document is plain markdown with fixed section headers, stored
// in the ledger alongside its content hash.
//
// Absence of the document is not an error: Load returns (nil, nil) and
// callers must treat a nil truth as "no truth" - verification then yields a
// warning with confidence 0 rather than failing.
package truth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/keel/pkg/ledger"
)

// InitialVersion is the semver assigned to a freshly created truth document.
const InitialVersion = "1.0.0"

// Store reads and writes the canonical truth document through the ledger.
type Store struct {
	client *ledger.Client
	nowFn  func() time.Time
}

// NewStore creates a truth store backed by the given ledger client.
func NewStore(client *ledger.Client) *Store {
	return &Store{
		client: client,
		nowFn:  time.Now,
	}
}

// Load parses the stored truth document into a ProjectTruth.
// Returns (nil, nil) when no document exists.
func (s *Store) Load(ctx context.Context) (*ledger.ProjectTruth, error) {
	doc, _, err := s.client.GetTruthDoc(ctx)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load truth document: %w", err)
	}

	parsed, err := Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse truth document: %w", err)
	}

	return parsed, nil
}

// LoadDocument returns the raw truth document and its content hash.
// Returns ("", "", nil) when no document exists.
func (s *Store) LoadDocument(ctx context.Context) (doc string, hash string, err error) {
	doc, hash, err = s.client.GetTruthDoc(ctx)
	if err != nil {
		if ledger.IsNotFound(err) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("failed to load truth document: %w", err)
	}
	return doc, hash, nil
}

// Create renders the given truth deterministically and persists it as the
// canonical document. A missing version defaults to InitialVersion; the
// last-verified timestamp is stamped with the current time.
// Create fails if a truth document already exists - replacements must go
// through the version manager.
func (s *Store) Create(ctx context.Context, data *ledger.ProjectTruth) (*ledger.ProjectTruth, error) {
	existing, _, err := s.client.GetTruthDoc(ctx)
	if err != nil && !ledger.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check for existing truth: %w", err)
	}
	if existing != "" {
		return nil, fmt.Errorf("truth document already exists: use the version manager to change it")
	}

	if data.WhatWereBuilding == "" {
		return nil, fmt.Errorf("what we're building cannot be empty")
	}
	if data.Industry == "" {
		return nil, fmt.Errorf("industry cannot be empty")
	}

	created := *data
	if created.Version == "" {
		created.Version = InitialVersion
	}
	created.LastVerifiedMs = s.nowFn().UnixMilli()

	if err := s.client.PutTruthDoc(ctx, Render(&created)); err != nil {
		// Another creator can win between the existence check above and
		// this write; the claim itself is the arbiter.
		if errors.Is(err, ledger.ErrConflict) {
			return nil, fmt.Errorf("truth document already exists: use the version manager to change it")
		}
		return nil, fmt.Errorf("failed to persist truth document: %w", err)
	}

	return &created, nil
}
