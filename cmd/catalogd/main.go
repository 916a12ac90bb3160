package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/webcomponents/catalog/pkg/analysis"
	"github.com/webcomponents/catalog/pkg/async"
	"github.com/webcomponents/catalog/pkg/config"
	"github.com/webcomponents/catalog/pkg/httputil"
	"github.com/webcomponents/catalog/pkg/ingest"
	"github.com/webcomponents/catalog/pkg/observability"
	"github.com/webcomponents/catalog/pkg/search"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/storage/postgres"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/upstream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting catalogd")

	ctx := context.Background()
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize OpenTelemetry, continuing without it")
	}

	store, pgStore, db, err := openStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to initialize storage")
		os.Exit(1)
	}
	logger.WithField("type", cfg.Storage.Type).Info("storage initialized")

	allowlistLog := logrus.NewEntry(logrus.StandardLogger())
	allowlist, err := config.NewAllowlistWatcher(cfg.Catalog.SPDXAllowlistPath, allowlistLog)
	if err != nil {
		logger.WithError(err).Error("failed to start spdx allowlist watcher")
		os.Exit(1)
	}
	defer allowlist.Close()

	sourceHost := upstream.NewSourceHostClient(os.Getenv("CATALOG_GITHUB_API_URL"), os.Getenv("CATALOG_GITHUB_TOKEN"))
	registry := upstream.NewRegistryClient(os.Getenv("CATALOG_NPM_REGISTRY_URL"), "")
	unpkg := upstream.NewUnpkgClient(os.Getenv("CATALOG_UNPKG_URL"))

	var queue tasks.Queue
	pool := async.NewWorkerPool(ctx, 8, "task-queue", 60*time.Second)
	defer pool.Shutdown(cfg.Server.ShutdownTimeout)

	tr := &taskRouter{store: store, log: logrus.NewEntry(logrus.StandardLogger())}
	queue = tasks.NewInProcessQueue(pool, tr.dispatch)

	var outboxPoller *tasks.OutboxPoller
	if db != nil {
		outboxPoller = tasks.NewOutboxPoller(db, 2*time.Second, tr.dispatch)
		go outboxPoller.Run(ctx)
	}

	reconciler := &ingest.Reconciler{
		Store:      store,
		SourceHost: sourceHost,
		Registry:   registry,
		Unpkg:      unpkg,
		Queue:      queue,
		Allowlist:  allowlist.Allowlist(),
	}
	tr.reconciler = reconciler

	if db != nil {
		tr.indexer = search.NewIndexer(db, store, queue)
	}

	analysisEndpoint := os.Getenv("CATALOG_ANALYZER_ENDPOINT")
	if analysisEndpoint != "" {
		publisher, err := analysis.NewPublisher(ctx, store, analysisEndpoint, os.Getenv("CATALOG_ANALYZER_SECRET"))
		if err != nil {
			logger.WithError(err).Warn("failed to start analysis publisher, analysis bridge disabled")
		} else {
			tr.publisher = publisher
			defer publisher.Close()
		}
	}

	var tokenAdmitter tasks.TokenAdmitter
	if pgStore != nil {
		if redis := pgStore.Redis(); redis != nil {
			tokenAdmitter = redis
		}
	}
	shell := tasks.NewShell(tokenAdmitter, logrus.NewEntry(logrus.StandardLogger()))

	router := mux.NewRouter()
	registerTaskRoutes(router, shell, tr)

	readHandlers := &readAPI{store: store}
	readHandlers.RegisterRoutes(router)

	searchHandlers := search.NewHandlers(search.NewSearchService(db))
	searchHandlers.RegisterRoutes(router)

	replyHandler := &analysis.ReplyHandler{
		Store:  store,
		Queue:  queue,
		Secret: os.Getenv("CATALOG_ANALYZER_SECRET"),
		Log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	router.Handle("/v1/analysis/reply", replyHandler).Methods(http.MethodPost)

	var handler http.Handler = router
	handler = httputil.RecoveryMiddleware(handler)
	handler = httputil.LoggingMiddleware(handler)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "catalogd",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var healthChecker *observability.HealthChecker
	if pgStore != nil {
		var redisClient *redis.Client
		if r := pgStore.Redis(); r != nil {
			redisClient = r.GetClient()
		}
		healthChecker = observability.NewHealthChecker(db, redisClient)
	} else {
		healthChecker = observability.NewHealthChecker(nil, nil)
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("# catalogd metrics\n"))
		}))
	}
	healthServer := &http.Server{
		Addr:         ":" + cfg.Server.HealthPort,
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("starting health server on %s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	shutdownManager := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if pgStore != nil {
		shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
			return pgStore.Close()
		})
	}
	if otelProviders != nil {
		shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.Infof("starting catalogd API on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			os.Exit(1)
		}
	}()

	if err := shutdownManager.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info("catalogd shutdown complete")
}

// openStore builds the configured Store backend, returning the
// concrete *postgres.PostgresStore and its *sql.DB too when that
// backend is selected (nil otherwise) so callers that need raw SQL
// access (search indexing, task outbox) can get at it.
func openStore(cfg storage.Config) (storage.Store, *postgres.PostgresStore, *sql.DB, error) {
	switch cfg.Type {
	case "", "filesystem":
		root := cfg.FilesystemRoot
		if root == "" {
			root = "/tmp/catalog"
		}
		fs, err := storage.NewFileSystemStore(root)
		return fs, nil, nil, err
	case "postgres":
		pg, err := postgres.NewPostgresStore(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, pg, pg.DB(), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// registerTaskRoutes wires every task path the taskRouter knows about
// through the Shell so admission and result translation stay uniform.
func registerTaskRoutes(router *mux.Router, shell *tasks.Shell, tr *taskRouter) {
	paths := []string{
		"/task/ingest/{owner}/{repo}",
		"/task/ingest/{owner}/{repo}/{tag}",
		"/task/update/{owner}/{repo}",
		"/task/update-author/{name}",
		"/task/update-indexes/{owner}/{repo}",
		"/task/request-analysis/{owner}/{repo}",
	}
	for _, p := range paths {
		router.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			shell.Run(w, r, tasks.Options{}, func(ctx context.Context) tasks.HandlerResult {
				return tr.run(ctx, r.URL.Path)
			})
		}).Methods(http.MethodPost)
	}
}
