package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/config"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/storage/postgres"
	"github.com/webcomponents/catalog/pkg/sweep"
	"github.com/webcomponents/catalog/pkg/tasks"
)

var (
	updateSchedule  = flag.String("update-schedule", "0 3 * * *", "Cron schedule for the fleet Update pass (default: 03:00 UTC)")
	analyzeSchedule = flag.String("analyze-schedule", "30 3 * * *", "Cron schedule for the fleet analysis-request pass (default: 03:30 UTC)")
	indexSchedule   = flag.String("index-schedule", "0 4 * * *", "Cron schedule for the fleet reindex pass (default: 04:00 UTC)")
	sitemapSchedule = flag.String("sitemap-schedule", "30 4 * * *", "Cron schedule for sitemap rebuild (default: 04:30 UTC)")
	runOnce         = flag.String("run-once", "", "Run a single pass and exit: update, analyze, index, or sitemaps")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, queue, db, err := openSweepDeps(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	sw := sweep.NewSweeper(store, queue, db, logrus.NewEntry(logrus.StandardLogger()))
	ctx := context.Background()

	if *runOnce != "" {
		if err := runPass(ctx, sw, *runOnce); err != nil {
			log.Fatalf("%s pass failed: %v", *runOnce, err)
		}
		log.Printf("%s pass completed successfully", *runOnce)
		return
	}

	c := cron.New(cron.WithLocation(time.UTC))

	schedule := map[string]string{
		"update":   *updateSchedule,
		"analyze":  *analyzeSchedule,
		"index":    *indexSchedule,
		"sitemaps": *sitemapSchedule,
	}
	for pass, sched := range schedule {
		pass := pass
		if _, err := c.AddFunc(sched, func() {
			log.Printf("starting %s pass", pass)
			if err := runPass(context.Background(), sw, pass); err != nil {
				log.Printf("%s pass failed: %v", pass, err)
				return
			}
			log.Printf("%s pass completed successfully", pass)
		}); err != nil {
			log.Fatalf("failed to schedule %s pass: %v", pass, err)
		}
	}

	c.Start()
	log.Println("catalog-sweep started")
	for pass, sched := range schedule {
		log.Printf("%s schedule: %s", pass, sched)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down gracefully...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("catalog-sweep stopped")
}

func runPass(ctx context.Context, sw *sweep.Sweeper, pass string) error {
	switch pass {
	case "update":
		return sw.UpdateAll(ctx)
	case "analyze":
		return sw.AnalyzeAll(ctx)
	case "index":
		return sw.IndexAll(ctx)
	case "sitemaps":
		return sw.BuildSitemaps(ctx)
	default:
		return fmt.Errorf("unknown pass %q (want update, analyze, index, or sitemaps)", pass)
	}
}

// openSweepDeps builds a Store and a Queue over it. The sweep binary
// requires the Postgres backend: every task it emits must survive a
// restart between the sweep running and catalogd's OutboxPoller
// draining it, which only the durable outbox backend provides.
func openSweepDeps(cfg storage.Config) (storage.Store, tasks.Queue, *sql.DB, error) {
	if cfg.Type != "postgres" {
		return nil, nil, nil, fmt.Errorf("catalog-sweep requires postgres storage, got %q", cfg.Type)
	}
	pg, err := postgres.NewPostgresStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return pg, &perCallOutboxQueue{db: pg.DB()}, pg.DB(), nil
}

// perCallOutboxQueue opens one transaction per Enqueue call, since the
// sweeper has no ancestor transaction of its own to piggyback on
// (unlike the task handlers that use tasks.OutboxQueue directly).
type perCallOutboxQueue struct {
	db *sql.DB
}

func (q *perCallOutboxQueue) Enqueue(ctx context.Context, t tasks.Task) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := tasks.NewOutboxQueue(tx).Enqueue(ctx, t); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
