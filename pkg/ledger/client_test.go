package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testItem(category Category, title string) *Item {
	return &Item{
		ID:          uuid.New().String(),
		Title:       title,
		Description: "description of " + title,
		Category:    category,
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

func testVersion(number string) *TruthVersion {
	return &TruthVersion{
		ID:          uuid.New().String(),
		Number:      number,
		TimestampMs: time.Now().UnixMilli(),
		Author:      "tester",
		Reason:      "test version",
		Impact:      ImpactPatch,
		ContentHash: ContentHash("doc-" + number),
		Truth:       ProjectTruth{WhatWereBuilding: "bookkeeping tool", Industry: "bookkeeping", Version: number},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-project", client.Project())
	})

	t.Run("rejects empty project name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "project name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestTruthDoc(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("absent document is not found", func(t *testing.T) {
		_, _, err := client.GetTruthDoc(ctx)
		assert.True(t, IsNotFound(err))
	})

	t.Run("put then get round-trips with hash", func(t *testing.T) {
		doc := "# PROJECT TRUTH\n\n## WHAT WE'RE BUILDING\nA bookkeeping tool\n"
		require.NoError(t, client.PutTruthDoc(ctx, doc))

		got, hash, err := client.GetTruthDoc(ctx)
		require.NoError(t, err)
		assert.Equal(t, doc, got)
		assert.Equal(t, ContentHash(doc), hash)
	})

	t.Run("second put loses the creation race", func(t *testing.T) {
		err := client.PutTruthDoc(ctx, "# PROJECT TRUTH\n\n## WHAT WE'RE BUILDING\nSomething else\n")
		assert.ErrorIs(t, err, ErrConflict)

		// The original document is untouched.
		got, _, err := client.GetTruthDoc(ctx)
		require.NoError(t, err)
		assert.Contains(t, got, "A bookkeeping tool")
	})
}

func TestItemLogs(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("append and read back in order", func(t *testing.T) {
		first := testItem(CategoryBacklog, "first")
		second := testItem(CategoryBacklog, "second")
		require.NoError(t, client.AppendItem(ctx, first))
		require.NoError(t, client.AppendItem(ctx, second))

		items, err := client.Items(ctx, CategoryBacklog)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "first", items[0].Title)
		assert.Equal(t, "second", items[1].Title)
	})

	t.Run("recent items returns bounded window", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, client.AppendItem(ctx, testItem(CategoryDecision, fmt.Sprintf("decision-%d", i))))
		}

		recent, err := client.RecentItems(ctx, CategoryDecision, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "decision-2", recent[0].Title)
		assert.Equal(t, "decision-4", recent[2].Title)
	})

	t.Run("empty category yields empty slice", func(t *testing.T) {
		items, err := client.Items(ctx, CategorySprintGoals)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("rejects invalid item", func(t *testing.T) {
		err := client.AppendItem(ctx, &Item{ID: "nope", Title: "x", Category: CategoryBacklog})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid item")
	})

	t.Run("sprint items are scoped by sprint ID", func(t *testing.T) {
		task := testItem(CategorySprintTask, "sprint task")
		require.NoError(t, client.AppendSprintItem(ctx, "s1", task))

		s1, err := client.SprintItems(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, s1, 1)

		s2, err := client.SprintItems(ctx, "s2")
		require.NoError(t, err)
		assert.Empty(t, s2)
	})
}

func TestCommitVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("first commit with empty expected hash", func(t *testing.T) {
		client, _ := setupTestClient(t)
		v := testVersion("1.0.0")

		require.NoError(t, client.CommitVersion(ctx, v, "", "doc-1.0.0"))

		current, err := client.CurrentVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, v.ID, current.ID)

		doc, hash, err := client.GetTruthDoc(ctx)
		require.NoError(t, err)
		assert.Equal(t, "doc-1.0.0", doc)
		assert.Equal(t, ContentHash("doc-1.0.0"), hash)
	})

	t.Run("sequential commits build ordered immutable history", func(t *testing.T) {
		client, _ := setupTestClient(t)

		numbers := []string{"1.0.0", "1.0.1", "1.1.0"}
		expectedHash := ""
		for _, n := range numbers {
			v := testVersion(n)
			doc := "doc-" + n
			require.NoError(t, client.CommitVersion(ctx, v, expectedHash, doc))
			expectedHash = ContentHash(doc)
		}

		versions, err := client.ListVersions(ctx)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		for i, n := range numbers {
			assert.Equal(t, n, versions[i].Number)
		}

		changelog, err := client.Changelog(ctx)
		require.NoError(t, err)
		require.Len(t, changelog, 3)
		assert.Equal(t, "1.0.0", changelog[0].Number)
	})

	t.Run("stale hash surfaces conflict and writes nothing", func(t *testing.T) {
		client, _ := setupTestClient(t)

		require.NoError(t, client.CommitVersion(ctx, testVersion("1.0.0"), "", "doc-a"))

		stale := testVersion("1.0.1")
		err := client.CommitVersion(ctx, stale, "wrong-hash", "doc-b")
		assert.True(t, IsConflict(err))

		versions, listErr := client.ListVersions(ctx)
		require.NoError(t, listErr)
		assert.Len(t, versions, 1)

		doc, _, docErr := client.GetTruthDoc(ctx)
		require.NoError(t, docErr)
		assert.Equal(t, "doc-a", doc)
	})

	t.Run("stored version is returned byte-identical", func(t *testing.T) {
		client, _ := setupTestClient(t)
		v := testVersion("2.0.0")
		v.Changes = []FieldChange{{Field: "industry", Old: "bookkeeping", New: "payroll"}}

		require.NoError(t, client.CommitVersion(ctx, v, "", "doc"))

		got, err := client.GetVersion(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	})

	t.Run("unknown version is not found", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.GetVersion(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})
}

func TestUpsertPattern(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	key := PatternKeyFor(PatternDomainMismatch, "casino")

	t.Run("creates pattern on first observation", func(t *testing.T) {
		p, err := client.UpsertPattern(ctx, key, func(p *ViolationPattern) {
			p.Type = PatternDomainMismatch
			p.Signature = "casino"
			p.Industry = "bookkeeping"
			p.Observe(PatternExample{Title: "odds tracker", Confidence: 96, SeenAtMs: 1})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Occurrences)

		stored, err := client.GetPattern(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, p, stored)
	})

	t.Run("merges on re-observation", func(t *testing.T) {
		_, err := client.UpsertPattern(ctx, key, func(p *ViolationPattern) {
			p.Observe(PatternExample{Title: "betting report", Confidence: 98, SeenAtMs: 2})
		})
		require.NoError(t, err)

		stored, err := client.GetPattern(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Occurrences)
		assert.Equal(t, 97.0, stored.AvgConfidence)
	})

	t.Run("list returns all patterns", func(t *testing.T) {
		other := PatternKeyFor(PatternFeatureCreep, "also")
		_, err := client.UpsertPattern(ctx, other, func(p *ViolationPattern) {
			p.Type = PatternFeatureCreep
			p.Signature = "also"
			p.Observe(PatternExample{Confidence: 70, SeenAtMs: 3})
		})
		require.NoError(t, err)

		patterns, err := client.ListPatterns(ctx)
		require.NoError(t, err)
		assert.Len(t, patterns, 2)
	})

	t.Run("unknown pattern is not found", func(t *testing.T) {
		_, err := client.GetPattern(ctx, "terminology-drift/unknown")
		assert.True(t, IsNotFound(err))
	})
}

func TestReportHistory(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	makeReport := func(drift int) *DriftReport {
		return &DriftReport{
			ID:           uuid.New().String(),
			TimestampMs:  time.Now().UnixMilli(),
			OverallDrift: drift,
			Severity:     SeverityForDrift(drift),
		}
	}

	t.Run("push and read newest first", func(t *testing.T) {
		first := makeReport(10)
		second := makeReport(50)
		require.NoError(t, client.PushReport(ctx, first))
		require.NoError(t, client.PushReport(ctx, second))

		reports, err := client.RecentReports(ctx, 10)
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, second.ID, reports[0].ID)
		assert.Equal(t, first.ID, reports[1].ID)
	})

	t.Run("history is capped FIFO", func(t *testing.T) {
		for i := 0; i < ReportHistoryCap+10; i++ {
			require.NoError(t, client.PushReport(ctx, makeReport(i%100)))
		}

		reports, err := client.RecentReports(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, reports, ReportHistoryCap)
	})

	t.Run("get by ID finds retained report", func(t *testing.T) {
		r := makeReport(42)
		require.NoError(t, client.PushReport(ctx, r))

		got, err := client.GetReport(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, 42, got.OverallDrift)
	})

	t.Run("evicted report is not found", func(t *testing.T) {
		_, err := client.GetReport(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})

	t.Run("publish delivers a drift event", func(t *testing.T) {
		sub, err := client.SubscribeDriftReports(ctx)
		require.NoError(t, err)
		defer sub.Close()

		r := makeReport(30)
		require.NoError(t, client.PushReport(ctx, r))
		require.NoError(t, client.PublishDriftReport(ctx, r))

		select {
		case got := <-sub.Events():
			assert.Equal(t, r.ID, got.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for drift event")
		}
	})
}

func TestEscalations(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	esc := &Escalation{
		ID:           uuid.New().String(),
		ReportID:     uuid.New().String(),
		Severity:     SeverityCritical,
		OverallDrift: 85,
		Note:         "critical drift detected",
		CreatedAtMs:  time.Now().UnixMilli(),
	}
	require.NoError(t, client.AppendEscalation(ctx, esc))

	escalations, err := client.Escalations(ctx)
	require.NoError(t, err)
	require.Len(t, escalations, 1)
	assert.Equal(t, esc.ID, escalations[0].ID)
	assert.Equal(t, SeverityCritical, escalations[0].Severity)
}

func TestResolutions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	res := &Resolution{
		ID:          uuid.New().String(),
		Strategy:    StrategyEmergency,
		Status:      ResolutionInitiated,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	t.Run("put and get round-trips", func(t *testing.T) {
		require.NoError(t, client.PutResolution(ctx, res))

		got, err := client.GetResolution(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
		assert.Equal(t, StrategyEmergency, got.Strategy)
	})

	t.Run("full replacement on update", func(t *testing.T) {
		res.Status = ResolutionCompleted
		res.Outcome = "resolved"
		require.NoError(t, client.PutResolution(ctx, res))

		got, err := client.GetResolution(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, ResolutionCompleted, got.Status)
		assert.Equal(t, "resolved", got.Outcome)
	})

	t.Run("unknown resolution is not found", func(t *testing.T) {
		_, err := client.GetResolution(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})

	t.Run("list returns stored resolutions", func(t *testing.T) {
		list, err := client.ListResolutions(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestBlockedFlag(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	blocked, _, err := client.Blocked(ctx)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, client.SetBlocked(ctx, "critical drift"))
	blocked, reason, err := client.Blocked(ctx)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, "critical drift", reason)

	require.NoError(t, client.ClearBlocked(ctx))
	blocked, _, err = client.Blocked(ctx)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestContentHash(t *testing.T) {
	// Deterministic and sensitive to content
	assert.Equal(t, ContentHash("a"), ContentHash("a"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
	assert.Len(t, ContentHash("anything"), 64)
}
