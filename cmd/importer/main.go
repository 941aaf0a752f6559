package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/raycross/internal/adapters/overlay"
	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/adapters/valkey"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
	"github.com/samirrijal/raycross/internal/pkg/config"
	"github.com/samirrijal/raycross/internal/pkg/logging"
	"github.com/samirrijal/raycross/internal/pkg/telemetry"
	"github.com/samirrijal/raycross/internal/workflows"
)

const usage = `usage:
  importer                                   run the import worker
  importer submit <session> <batch|file> [fit]  start an import workflow`

func main() {
	cfg, err := config.Load("raycross-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 {
		if os.Args[1] != "submit" || len(os.Args) < 4 {
			log.Fatal(usage)
		}
		in := submitInput(os.Args[2], os.Args[3], len(os.Args) > 4 && os.Args[4] == "fit")
		if err := submit(c, cfg.Temporal.TaskQueue, in); err != nil {
			log.Fatalf("submit: %v", err)
		}
		return
	}

	runWorker(c, cfg)
}

func runWorker(c client.Client, cfg *config.Config) {
	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Sessions live in Valkey so the API sees what the worker imports.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	newSurface := func() ports.OverlaySurface { return overlay.New() }
	acts := &workflows.ImportActivities{
		Sessions: usecases.NewSessionService(valkey.NewSessionStore(cache), nil, newSurface, cfg.Session.TTL()),
	}

	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		acts.Observations = postgres.NewObservationRepo(db)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ImportWorkflow)
	w.RegisterActivity(acts)

	slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// submitInput treats source as a file when it looks like a path to a CSV or
// XLSX file, and as a batch name otherwise.
func submitInput(sessionID, source string, fit bool) workflows.ImportInput {
	in := workflows.ImportInput{SessionID: sessionID, Fit: fit}
	lower := strings.ToLower(source)
	if strings.ContainsRune(source, os.PathSeparator) ||
		strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx") {
		in.Source.FilePath = source
	} else {
		in.Source.Batch = source
	}
	return in
}

func submit(c client.Client, taskQueue string, in workflows.ImportInput) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("import-%s-%d", in.SessionID, time.Now().UnixNano()),
		TaskQueue: taskQueue,
	}, workflows.ImportWorkflow, in)
	if err != nil {
		return err
	}
	slog.Info("import workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.ImportResult
	if err := run.Get(ctx, &res); err != nil {
		return err
	}
	fmt.Printf("added %d, skipped %d\n", res.Report.Added, res.Report.Skipped)
	if res.Fit != nil {
		fmt.Printf("fit: %s (%d intersections)\n", res.Fit.Status, len(res.Fit.Intersections))
	}
	return nil
}
