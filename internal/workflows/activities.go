package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/raycross/internal/adapters/feed"
	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
	"github.com/samirrijal/raycross/internal/pkg/telemetry"
)

// ImportActivities holds the activity implementations for the import workflow.
// Rows are read inside the activity so they never enter workflow history.
type ImportActivities struct {
	Sessions     *usecases.SessionService
	Observations ports.ObservationRepository
}

// ImportRows loads the source's rows and imports them into the session.
func (a *ImportActivities) ImportRows(ctx context.Context, sessionID string, src ImportSource) (report domain.ImportReport, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanImportWorkflow)
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rf, closeFn, err := a.open(src)
	if err != nil {
		return domain.ImportReport{}, err
	}
	defer closeFn()

	span.SetAttributes(attribute.String("import.source", rf.Source()))
	activity.RecordHeartbeat(ctx, rf.Source())
	report, err = a.Sessions.ImportFeed(ctx, sessionID, rf)
	if err != nil {
		return domain.ImportReport{}, permanent(fmt.Errorf("import %s: %w", rf.Source(), err))
	}
	return report, nil
}

// ComputeFit runs intersection and ellipse fitting on the session.
func (a *ImportActivities) ComputeFit(ctx context.Context, sessionID string) (domain.FitResult, error) {
	res, err := a.Sessions.ComputeIntersectionsAndFit(ctx, sessionID)
	return res, permanent(err)
}

// permanent stops Temporal from retrying errors a retry cannot fix.
func permanent(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrInvalidInput) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "permanent", err)
	}
	return err
}

func (a *ImportActivities) open(src ImportSource) (ports.RowFeed, func(), error) {
	switch {
	case src.Batch != "":
		if a.Observations == nil {
			return nil, nil, fmt.Errorf("batch %s: no observation repository configured", src.Batch)
		}
		return postgres.NewBatchFeed(a.Observations, src.Batch), func() {}, nil
	case src.FilePath != "":
		f, err := os.Open(src.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", src.FilePath, err)
		}
		format, err := feed.Detect("", src.FilePath, nil)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		closeFn := func() {
			if err := f.Close(); err != nil {
				slog.Warn("close import file", "path", src.FilePath, "error", err)
			}
		}
		if format == feed.FormatXLSX {
			return feed.NewXLSX(f), closeFn, nil
		}
		return feed.NewCSV(f), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("import source needs a batch or a file path")
	}
}
