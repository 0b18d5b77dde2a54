package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sejf-plikow/internal/models"
)

func insertTestEvent(t *testing.T, username string, action models.AuditAction, outcome models.AuditOutcome) {
	t.Helper()
	err := testStore.InsertAuditEvent(context.Background(), &models.AuditEvent{
		Username: username,
		Role:     models.RoleGuest,
		Action:   action,
		Outcome:  outcome,
		Detail:   map[string]string{"source": "test"},
		ClientIP: "127.0.0.1",
	})
	require.NoError(t, err)
}

func TestAuditInsertAndFilter(t *testing.T) {
	insertTestEvent(t, "audit_alice", models.ActionLoginSuccess, models.OutcomeSuccess)
	insertTestEvent(t, "audit_alice", models.ActionLoginFailed, models.OutcomeFailed)
	insertTestEvent(t, "audit_bob", models.ActionFileUpload, models.OutcomeSuccess)

	byAction, err := testStore.ListAuditEvents(context.Background(), AuditFilter{
		Action: models.ActionLoginFailed,
		Limit:  50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, byAction)
	for _, e := range byAction {
		require.Equal(t, models.ActionLoginFailed, e.Action)
	}

	byOutcome, err := testStore.ListAuditEvents(context.Background(), AuditFilter{
		Outcome: models.OutcomeFailed,
		Limit:   50,
	})
	require.NoError(t, err)
	for _, e := range byOutcome {
		require.Equal(t, models.OutcomeFailed, e.Outcome)
	}

	byActor, err := testStore.ListAuditEvents(context.Background(), AuditFilter{
		ActorContains: "audit_bob",
		Limit:         50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, byActor)
	for _, e := range byActor {
		require.Equal(t, "audit_bob", e.Username)
		require.Equal(t, "test", e.Detail["source"])
	}

	empty, err := testStore.ListAuditEvents(context.Background(), AuditFilter{
		To:    time.Now().Add(-24 * time.Hour),
		Limit: 50,
	})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAuditNewestFirst(t *testing.T) {
	insertTestEvent(t, "audit_order", models.ActionLogout, models.OutcomeSuccess)
	insertTestEvent(t, "audit_order", models.ActionLogout, models.OutcomeSuccess)

	events, err := testStore.ListAuditEvents(context.Background(), AuditFilter{
		ActorContains: "audit_order",
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.GreaterOrEqual(t, events[0].ID, events[1].ID)
}

func TestAuditPrune(t *testing.T) {
	for i := 0; i < 10; i++ {
		insertTestEvent(t, "audit_prune", models.ActionConfigChanged, models.OutcomeSuccess)
	}

	require.NoError(t, testStore.PruneAuditEvents(context.Background(), 5))

	remaining, err := testStore.ListAuditEvents(context.Background(), AuditFilter{Limit: 1000})
	require.NoError(t, err)
	require.LessOrEqual(t, len(remaining), 5)
}
