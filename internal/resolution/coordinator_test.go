package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/keel/pkg/ledger"
)

func setupCoordinator(t *testing.T) (*Coordinator, *ledger.Client) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewCoordinator(client, []string{"alex", "sam"}), client
}

func reportWithDrift(drift int) *ledger.DriftReport {
	return &ledger.DriftReport{
		ID:           uuid.New().String(),
		TimestampMs:  time.Now().UnixMilli(),
		OverallDrift: drift,
		Severity:     ledger.SeverityForDrift(drift),
		Checks: []ledger.DriftCheck{
			{Name: "backlog", Drift: drift, SampleSize: 5},
			{Name: "documents", Drift: 10, SampleSize: 2},
		},
	}
}

func TestInitiateStrategySelection(t *testing.T) {
	cases := []struct {
		drift    int
		strategy ledger.Strategy
		status   ledger.ResolutionStatus
	}{
		{85, ledger.StrategyEmergency, ledger.ResolutionEmergencyActive},
		{65, ledger.StrategyIntervention, ledger.ResolutionInterventionInProgress},
		{45, ledger.StrategyCollaborative, ledger.ResolutionCollaborativeReview},
		{25, ledger.StrategyInformational, ledger.ResolutionMonitoring},
	}

	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			coordinator, _ := setupCoordinator(t)
			res, err := coordinator.Initiate(context.Background(), reportWithDrift(tc.drift))
			require.NoError(t, err)

			assert.Equal(t, tc.strategy, res.Strategy)
			assert.Equal(t, tc.status, res.Status)
			assert.NotEmpty(t, res.Actions)
		})
	}
}

func TestInitiateEmergencyBlocksWork(t *testing.T) {
	coordinator, client := setupCoordinator(t)
	ctx := context.Background()

	res, err := coordinator.Initiate(ctx, reportWithDrift(85))
	require.NoError(t, err)

	blocked, reason, err := client.Blocked(ctx)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Contains(t, reason, res.ID)

	// Every emergency action must have run and succeeded.
	require.Len(t, res.Actions, 4)
	for _, action := range res.Actions {
		assert.True(t, action.OK, "action %q failed", action.Name)
	}
	assert.Equal(t, []string{"alex", "sam"}, res.Participants)
}

func TestInitiateInterventionAssignsDatedTasks(t *testing.T) {
	coordinator, _ := setupCoordinator(t)

	res, err := coordinator.Initiate(context.Background(), reportWithDrift(65))
	require.NoError(t, err)

	var assignment string
	for _, action := range res.Actions {
		if action.Name == "assign priority tasks" {
			assignment = action.Detail
		}
	}
	require.NotEmpty(t, assignment)
	assert.Contains(t, assignment, "realign backlog")
	assert.Contains(t, assignment, "due ")
}

func TestInitiateInformationalDoesNotBlock(t *testing.T) {
	coordinator, client := setupCoordinator(t)
	ctx := context.Background()

	_, err := coordinator.Initiate(ctx, reportWithDrift(25))
	require.NoError(t, err)

	blocked, _, err := client.Blocked(ctx)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestComplete(t *testing.T) {
	t.Run("clears the blocked flag and archives", func(t *testing.T) {
		coordinator, client := setupCoordinator(t)
		ctx := context.Background()

		res, err := coordinator.Initiate(ctx, reportWithDrift(85))
		require.NoError(t, err)

		completed, err := coordinator.Complete(ctx, res.ID, "truth reaffirmed with the team")
		require.NoError(t, err)

		assert.Equal(t, ledger.ResolutionArchived, completed.Status)
		assert.Equal(t, "truth reaffirmed with the team", completed.Outcome)
		assert.NotZero(t, completed.CompletedAtMs)

		blocked, _, err := client.Blocked(ctx)
		require.NoError(t, err)
		assert.False(t, blocked)

		assert.Contains(t, completed.LearningTags, "misaligned-backlog")
		assert.Contains(t, completed.LearningTags, "severe-drift")
		assert.Contains(t, completed.LearningTags, "quick-resolution")
	})

	t.Run("unknown id is an explicit error", func(t *testing.T) {
		coordinator, _ := setupCoordinator(t)
		_, err := coordinator.Complete(context.Background(), uuid.New().String(), "done")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("double completion is rejected", func(t *testing.T) {
		coordinator, _ := setupCoordinator(t)
		ctx := context.Background()

		res, err := coordinator.Initiate(ctx, reportWithDrift(45))
		require.NoError(t, err)

		_, err = coordinator.Complete(ctx, res.ID, "first")
		require.NoError(t, err)

		_, err = coordinator.Complete(ctx, res.ID, "second")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already completed")
	})
}

func TestDueFor(t *testing.T) {
	assert.Equal(t, dueCritical, dueFor(85))
	assert.Equal(t, dueHigh, dueFor(65))
	assert.Equal(t, dueMedium, dueFor(45))
	assert.Equal(t, dueDefault, dueFor(10))
}
