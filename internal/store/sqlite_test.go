package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testProspect() model.Prospect {
	return model.Prospect{
		FirstName: "Jane",
		LastName:  "Smith",
		Domain:    "example.com",
		Company:   "Example Inc",
		Title:     "CTO",
	}
}

func TestSQLiteCreateAndGetRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateRun(ctx, testProspect())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.RunStatusQueued, created.Status)

	got, err := s.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Jane", got.Prospect.FirstName)
	assert.Equal(t, "example.com", got.Prospect.Domain)
	assert.Nil(t, got.Result)
}

func TestSQLiteGetRun_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestSQLiteUpdateRunStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateRun(ctx, testProspect())
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus(ctx, created.ID, model.RunStatusVerifying))

	got, err := s.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusVerifying, got.Status)

	err = s.UpdateRunStatus(ctx, "no-such-run", model.RunStatusVerifying)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteCompleteRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateRun(ctx, testProspect())
	require.NoError(t, err)

	result := &model.RunResult{
		ValidEmails:      []string{"jane.smith@example.com"},
		TotalValid:       1,
		TotalGenerated:   47,
		BatchesProcessed: 1,
	}
	require.NoError(t, s.CompleteRun(ctx, created.ID, result))

	got, err := s.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"jane.smith@example.com"}, got.Result.ValidEmails)
	assert.Equal(t, 47, got.Result.TotalGenerated)
}

func TestSQLiteFailRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateRun(ctx, testProspect())
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, created.ID, errors.New("vendor unavailable")))

	got, err := s.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "vendor unavailable", got.Result.Error)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, testProspect())
	require.NoError(t, err)

	other := testProspect()
	other.Domain = "other.com"
	second, err := s.CreateRun(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus(ctx, second.ID, model.RunStatusVerifying))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byStatus, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusQueued})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, first.ID, byStatus[0].ID)

	byDomain, err := s.ListRuns(ctx, RunFilter{Domain: "other.com"})
	require.NoError(t, err)
	require.Len(t, byDomain, 1)
	assert.Equal(t, second.ID, byDomain[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.ListRuns(ctx, RunFilter{Domain: "missing.com"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
