package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/raycross/internal/adapters/memstore"
	"github.com/samirrijal/raycross/internal/adapters/overlay"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
)

// squareCSV holds two eastbound and two northbound rays crossing in a square
// around (0.005, 0.005), a header and one short row.
const squareCSV = `latitude,longitude,bearing,distance
0,-0.005,90,2223.9
0.01,-0.005,90,2223.9
-0.005,0,0,2223.9
-0.005,0.01,0,2223.9
1,2,3
`

type stubObservations struct {
	rows []domain.RawRow
}

func (s stubObservations) InsertBatch(ctx context.Context, batch string, rows []domain.RawRow) (int, error) {
	return len(rows), nil
}

func (s stubObservations) RowsByBatch(ctx context.Context, batch string) ([]domain.RawRow, error) {
	return s.rows, nil
}

func (s stubObservations) ListBatches(ctx context.Context) ([]string, error) { return nil, nil }

func newSessions(t *testing.T) (*usecases.SessionService, string) {
	t.Helper()
	svc := usecases.NewSessionService(memstore.New(0, nil), nil, func() ports.OverlaySurface { return overlay.New() }, time.Hour)
	snap, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	return svc, snap.SessionID
}

func TestImportWorkflow_FileWithFit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rays.csv")
	require.NoError(t, os.WriteFile(path, []byte(squareCSV), 0o600))

	sessions, id := newSessions(t)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{Sessions: sessions})

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: id, Source: ImportSource{FilePath: path}, Fit: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res ImportResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 4, res.Report.Added)
	assert.Equal(t, 2, res.Report.Skipped)
	require.NotNil(t, res.Fit)
	assert.Equal(t, domain.StatusOK, res.Fit.Status)
	assert.Len(t, res.Fit.Intersections, 4)

	snap, err := sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, snap.Rays, 4)
	require.NotNil(t, snap.LastFit)
}

func TestImportWorkflow_BatchWithoutFit(t *testing.T) {
	sessions, id := newSessions(t)
	repo := stubObservations{rows: []domain.RawRow{{"1", "2", "45", "100"}, {"x", "2", "45", "100"}}}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{Sessions: sessions, Observations: repo})

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: id, Source: ImportSource{Batch: "survey-7"}})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res ImportResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 1, res.Report.Added)
	assert.Equal(t, 1, res.Report.Skipped)
	assert.Nil(t, res.Fit)
}

func TestImportWorkflow_SkipsFitWhenNothingAdded(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{})

	env.OnActivity(ActivityImportRows, mock.Anything, "s-1", mock.Anything).
		Return(domain.ImportReport{Skipped: 3}, nil).Once()

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: "s-1", Source: ImportSource{Batch: "empty"}, Fit: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res ImportResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Nil(t, res.Fit)
	env.AssertExpectations(t)
}

func TestImportWorkflow_UnknownSessionFails(t *testing.T) {
	sessions, _ := newSessions(t)
	repo := stubObservations{rows: []domain.RawRow{{"1", "2", "45", "100"}}}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{Sessions: sessions, Observations: repo})

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: "missing", Source: ImportSource{Batch: "b"}})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestImportWorkflow_ImportRunsOnce(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{})

	calls := 0
	env.OnActivity(ActivityImportRows, mock.Anything, "s-1", mock.Anything).
		Return(func(ctx context.Context, sessionID string, src ImportSource) (domain.ImportReport, error) {
			calls++
			return domain.ImportReport{}, errors.New("activity timed out")
		})

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: "s-1", Source: ImportSource{Batch: "b"}, Fit: true})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Equal(t, 1, calls, "a failed import must not be retried")
}

func TestImportWorkflow_FitRetries(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&ImportActivities{})

	env.OnActivity(ActivityImportRows, mock.Anything, "s-1", mock.Anything).
		Return(domain.ImportReport{Added: 3}, nil).Once()
	env.OnActivity(ActivityComputeFit, mock.Anything, "s-1").
		Return(domain.FitResult{}, errors.New("store unavailable")).Once()
	env.OnActivity(ActivityComputeFit, mock.Anything, "s-1").
		Return(domain.FitResult{Status: domain.StatusNoIntersections}, nil).Once()

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{SessionID: "s-1", Source: ImportSource{Batch: "b"}, Fit: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res ImportResult
	require.NoError(t, env.GetWorkflowResult(&res))
	require.NotNil(t, res.Fit)
	assert.Equal(t, domain.StatusNoIntersections, res.Fit.Status)
	env.AssertExpectations(t)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, permanent(nil))
	err := permanent(domain.ErrSessionNotFound)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
