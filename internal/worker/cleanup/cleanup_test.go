package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/repo"
)

type fakePruner struct {
	mu     sync.Mutex
	before []time.Time
	n      int64
	err    error
}

func (f *fakePruner) PruneExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = append(f.before, before)
	return f.n, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.before)
}

func TestRunOnce_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	p := &fakePruner{n: 3}
	j := NewJob(map[string]Pruner{"otps": p}, nil, nil)
	j.Now = func() time.Time { return now }
	j.Retention = 24 * time.Hour

	require.NoError(t, j.RunOnce(context.Background()))
	require.Len(t, p.before, 1)
	assert.Equal(t, now.Add(-24*time.Hour), p.before[0])
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	bad, good := &fakePruner{err: boom}, &fakePruner{}
	j := NewJob(map[string]Pruner{"a": bad, "b": good}, nil, nil)

	err := j.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, good.calls())
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	p := &fakePruner{}
	j := NewJob(map[string]Pruner{"a": p}, nil, nil)
	j.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}

func TestRunOnce_AgainstLedgers(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	ledger := repo.NewRefreshLedger(gdb, time.Hour)
	otps := repo.NewOtpLedger(gdb, nil, "Shop")

	ledger.Now = func() time.Time { return time.Now().Add(-72 * time.Hour) }
	stale, err := ledger.Create(ctx, "u-1")
	require.NoError(t, err)
	otps.Now = ledger.Now
	_, err = otps.Issue(ctx, "a@example.com", domain.OtpReset)
	require.NoError(t, err)
	ledger.Now = time.Now
	fresh, err := ledger.Create(ctx, "u-1")
	require.NoError(t, err)

	j := NewJob(map[string]Pruner{"refresh_tokens": ledger, "otps": otps}, nil, nil)
	j.Retention = 24 * time.Hour
	require.NoError(t, j.RunOnce(ctx))

	_, err = ledger.Lookup(ctx, stale)
	require.ErrorIs(t, err, domain.ErrTokenNotRecognized)
	_, err = ledger.Lookup(ctx, fresh)
	require.NoError(t, err)
}
