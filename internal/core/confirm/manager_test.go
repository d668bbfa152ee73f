package confirm

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(clk clock.Clock) *Manager {
	return NewManager(clk, 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManager_PressByID(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newTestManager(clk)
	var calls atomic.Int32

	p := m.Open("admin", "restart", "Restart host?", countingAction(&calls))
	got, ok := m.Get(p.ID)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Len(t, m.Pending(), 1)

	_, err := m.Press(context.Background(), p.ID, "admin", ButtonConfirm)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, ok = m.Get(p.ID)
	assert.False(t, ok, "resolved prompt must be forgotten")
	assert.Empty(t, m.Pending())

	_, err = m.Press(context.Background(), p.ID, "admin", ButtonConfirm)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_RejectsOtherPresser(t *testing.T) {
	m := newTestManager(clock.NewFake(epoch))
	var calls atomic.Int32
	p := m.Open("admin", "addkey", "", countingAction(&calls))

	_, err := m.Press(context.Background(), p.ID, "someone-else", ButtonConfirm)
	assert.ErrorIs(t, err, ErrNotRequester)
	assert.Equal(t, StatePending, p.State())
	assert.Zero(t, calls.Load())
}

func TestManager_ExpiredPromptForgotten(t *testing.T) {
	clk := clock.NewFake(epoch)
	m := newTestManager(clk)
	p := m.Open("admin", "restart", "", nil)

	clk.Advance(30 * time.Second)
	assert.Equal(t, StateExpired, p.State())
	_, ok := m.Get(p.ID)
	assert.False(t, ok)
}
