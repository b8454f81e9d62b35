package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndLastRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := &Run{
		StartedAt: time.Now().Add(-time.Minute),
		Duration:  1500 * time.Millisecond,
		Files:     2,
		Passed:    1,
		Failed:    1,
		ExitCode:  1,
		Scenarios: []ScenarioRecord{
			{File: "home.page.yaml", Name: "has blog title", Passed: true, Duration: 20 * time.Millisecond},
			{File: "blog.page.yaml", Name: "bio", Message: "expected .avatar to exist, found no elements"},
		},
	}
	id, err := store.Record(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	last, err := store.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, id, last.ID)
	assert.Equal(t, 1500*time.Millisecond, last.Duration)
	assert.False(t, last.Succeeded())
	require.Len(t, last.Scenarios, 2)
	assert.Equal(t, "has blog title", last.Scenarios[0].Name)
	assert.True(t, last.Scenarios[0].Passed)
	assert.Equal(t, "expected .avatar to exist, found no elements", last.Scenarios[1].Message)
	assert.WithinDuration(t, run.StartedAt, last.StartedAt, time.Microsecond)
}

func TestStore_LastRunEmpty(t *testing.T) {
	last, err := openStore(t).LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestStore_RecentOrderAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		_, err := store.Record(ctx, &Run{StartedAt: base.Add(time.Duration(i) * time.Second), Passed: i})
		require.NoError(t, err)
	}

	runs, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 4, runs[0].Passed)
	assert.Equal(t, 2, runs[2].Passed)

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	runs, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStore_PruneCascadesScenarios(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	oldID, err := store.Record(ctx, &Run{StartedAt: time.Now().Add(-time.Hour), Scenarios: []ScenarioRecord{{Name: "old"}}})
	require.NoError(t, err)
	_, err = store.Record(ctx, &Run{Scenarios: []ScenarioRecord{{Name: "new"}}})
	require.NoError(t, err)

	_, err = store.Prune(ctx, 1)
	require.NoError(t, err)

	records, err := store.Scenarios(ctx, oldID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseConnectionString(t *testing.T) {
	assert.Equal(t, "a/b.db", parseConnectionString("sqlite://a/b.db"))
	assert.Equal(t, "./h.db", parseConnectionString("sqlite:./h.db"))
	assert.Equal(t, "h.db", parseConnectionString(" h.db "))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
