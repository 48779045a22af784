package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evd-tools/eve/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRunInput() model.RunInput {
	return model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Detectors: []model.DetectorID{model.DetectorMpileup, model.DetectorFreebayes},
		Output:    "/data/out.vcf",
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "/data/sample.bam", got.Input.BAM)
	assert.Equal(t, testRunInput().Detectors, got.Input.Detectors)
	assert.Nil(t, got.Result)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusDetecting))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDetecting, got.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
}

func TestSQLite_UpdateRunResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	result := &model.RunResult{
		Sites:      10,
		Accepted:   7,
		Rejected:   3,
		Records:    14,
		OutputPath: "/data/out.vcf",
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 7, got.Result.Accepted)
	assert.Equal(t, "/data/out.vcf", got.Result.OutputPath)
}

func TestSQLite_UpdateRunResult_FailedRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	result := &model.RunResult{Error: "all detectors failed"}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "all detectors failed", got.Result.Error)
}

func TestSQLite_ListRuns_StatusFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListRuns_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for range 3 {
		_, err := st.CreateRun(ctx, testRunInput())
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_Phases(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	phase, err := st.CreatePhase(ctx, run.ID, "detect")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	err = st.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name:     "detect",
		Status:   model.PhaseStatusComplete,
		Duration: 1200,
	})
	require.NoError(t, err)
}

func TestSQLite_CompletePhase_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompletePhase(context.Background(), "missing", &model.PhaseResult{
		Status: model.PhaseStatusComplete,
	})
	require.Error(t, err)
}

func TestSQLite_RecordDetectors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunInput())
	require.NoError(t, err)

	outcomes := []model.DetectorOutcome{
		{Detector: model.DetectorMpileup, Status: model.DetectorStatusSucceeded, Records: 42, Duration: 900},
		{Detector: model.DetectorFreebayes, Status: model.DetectorStatusFailed, Error: "exit status 1", Duration: 300},
	}
	require.NoError(t, st.RecordDetectors(ctx, run.ID, outcomes))

	// Empty outcomes are a no-op.
	require.NoError(t, st.RecordDetectors(ctx, run.ID, nil))
}
