package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSweeperExpiresAbandonedFlows(t *testing.T) {
	env := newTestEnv(t)
	env.text("/mint")
	env.press("proto:ierc-20")
	require.Equal(t, models.StateMintTicker, env.state())

	// a second user mid-broadcast must not be touched
	other, err := env.users.UpsertByTelegramID(context.Background(), 200, nil, "eth")
	require.NoError(t, err)
	require.NoError(t, env.users.SetState(context.Background(), other.TelegramUserID, models.StateConfirming))

	sw := NewSweeper(env.users, env.users, env.processes, env.audit, env.messenger, env.publisher, time.Hour, zap.NewNop())
	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.StateIdle, env.state())
	assert.Empty(t, env.process().Protocol)
	assert.Equal(t, models.StateConfirming, env.users.state(200))
	assert.Contains(t, env.lastText(), "expired")
	assert.Contains(t, env.audit.actions(), "expired")
	require.NotEmpty(t, env.publisher.events)
	assert.Equal(t, events.EventWorkflowExpired, env.publisher.events[len(env.publisher.events)-1].Type)
}

func TestSweeperIgnoresRecentActivity(t *testing.T) {
	env := newTestEnv(t)
	env.text("/mint")

	sw := NewSweeper(env.users, env.users, env.processes, env.audit, env.messenger, env.publisher, time.Hour, zap.NewNop())
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.StateMintProtocol, env.state())
}

func TestSweeperBatchNotStarvedByConfirmingUsers(t *testing.T) {
	env := newTestEnv(t)
	for id := int64(200); id < 205; id++ {
		_, err := env.users.UpsertByTelegramID(context.Background(), id, nil, "eth")
		require.NoError(t, err)
		require.NoError(t, env.users.SetState(context.Background(), id, models.StateConfirming))
	}
	env.text("/mint")

	sw := NewSweeper(env.users, env.users, env.processes, env.audit, env.messenger, env.publisher, time.Hour, zap.NewNop())
	sw.batch = 1
	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StateIdle, env.state())
	for id := int64(200); id < 205; id++ {
		assert.Equal(t, models.StateConfirming, env.users.state(id))
	}
}

func TestSweeperLogsSideEffectFailures(t *testing.T) {
	tests := []struct {
		name       string
		auditErr   error
		publishErr error
		wantLogs   []string
	}{
		{"audit down", errors.New("db gone"), nil, []string{"audit log failed"}},
		{"stream down", nil, errors.New("redis gone"), []string{"publish expiry event failed"}},
		{"both down", errors.New("db gone"), errors.New("redis gone"), []string{"audit log failed", "publish expiry event failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.text("/mint")
			env.audit.err = tt.auditErr
			env.publisher.err = tt.publishErr

			core, logs := observer.New(zapcore.WarnLevel)
			sw := NewSweeper(env.users, env.users, env.processes, env.audit, env.messenger, env.publisher, time.Hour, zap.New(core))
			sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

			n, err := sw.Sweep(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.Equal(t, models.StateIdle, env.state())

			var got []string
			for _, e := range logs.All() {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.wantLogs, got)
		})
	}
}
