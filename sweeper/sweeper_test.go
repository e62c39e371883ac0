package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/scanpdf/store"
)

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	clock := func() time.Time { return created }

	st, err := store.Open(filepath.Join(dir, "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	oldPath := filepath.Join(dir, "old.pdf")
	require.NoError(t, os.WriteFile(oldPath, []byte("%PDF"), 0o600))
	old, err := st.Create(ctx, store.NewConversion{Kind: "text", Input: []byte("old")})
	require.NoError(t, err)
	require.NoError(t, st.Complete(ctx, old.ID, oldPath, 4, 1))

	// Failed conversions have no output file.
	failed, err := st.Create(ctx, store.NewConversion{Kind: "text", Input: []byte("bad")})
	require.NoError(t, err)
	require.NoError(t, st.Fail(ctx, failed.ID, assert.AnError))

	created = now.Add(-time.Hour)
	fresh, err := st.Create(ctx, store.NewConversion{Kind: "text", Input: []byte("new")})
	require.NoError(t, err)

	sw := New(st, 24*time.Hour, time.Minute, WithClock(func() time.Time { return now }))
	n, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, oldPath)

	_, err = st.Get(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	n, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type countingStore struct {
	calls atomic.Int32
}

func (c *countingStore) ListExpired(ctx context.Context, before time.Time) ([]store.Conversion, error) {
	c.calls.Add(1)
	return nil, nil
}

func (c *countingStore) Delete(ctx context.Context, id string) error { return nil }

func TestRunStopsOnCancel(t *testing.T) {
	st := &countingStore{}
	sw := New(st, time.Hour, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	require.Eventually(t, func() bool { return st.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
