package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// Activity names.
const (
	ActivityImportRows = "ImportRows"
	ActivityComputeFit = "ComputeFit"
)

// ImportSource names where rows come from: a stored observation batch or a
// CSV/XLSX file readable by the worker. Batch wins when both are set.
type ImportSource struct {
	Batch    string
	FilePath string
}

// ImportInput is the input for the import workflow.
type ImportInput struct {
	SessionID string
	Source    ImportSource
	Fit       bool
}

// ImportResult is what the import workflow returns.
type ImportResult struct {
	Report domain.ImportReport
	Fit    *domain.FitResult
}

// ImportWorkflow bulk-loads rays into a session and optionally fits an ellipse
// through their crossings. Invalid rows are skipped, never retried.
func ImportWorkflow(ctx workflow.Context, input ImportInput) (ImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting import workflow", "session", input.SessionID)

	// ImportRows appends rays and is not idempotent, so it runs once.
	// ComputeFit replaces the previous result and may retry.
	importCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	fitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var result ImportResult

	// Step 1: Import rows
	err := workflow.ExecuteActivity(importCtx, ActivityImportRows, input.SessionID, input.Source).Get(ctx, &result.Report)
	if err != nil {
		return result, err
	}

	// Step 2: Fit
	if !input.Fit || result.Report.Added == 0 {
		logger.Info("Import finished", "added", result.Report.Added, "skipped", result.Report.Skipped)
		return result, nil
	}
	var fit domain.FitResult
	if err := workflow.ExecuteActivity(fitCtx, ActivityComputeFit, input.SessionID).Get(ctx, &fit); err != nil {
		return result, err
	}
	result.Fit = &fit

	logger.Info("Import finished", "added", result.Report.Added, "skipped", result.Report.Skipped, "status", fit.Status)
	return result, nil
}
