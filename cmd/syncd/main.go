package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/api"
	"github.com/fieldexpense/claimsync/internal/config"
	"github.com/fieldexpense/claimsync/internal/connectivity"
	"github.com/fieldexpense/claimsync/internal/draft"
	"github.com/fieldexpense/claimsync/internal/httpapi"
	"github.com/fieldexpense/claimsync/internal/orchestrator"
	"github.com/fieldexpense/claimsync/internal/pending"
	"github.com/fieldexpense/claimsync/internal/refdata"
	"github.com/fieldexpense/claimsync/internal/storage"
	"github.com/fieldexpense/claimsync/internal/syncer"
	"github.com/fieldexpense/claimsync/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting claimsync daemon",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Int("port", cfg.Server.Port))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	store, err := storage.NewSQLiteStore(storage.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to open durable store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	tokens := api.NewFileTokenStore(cfg.Backend.TokenPath)
	backend := api.NewClient(api.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, tokens, log)

	monitor := connectivity.NewMonitor(log)
	prober := connectivity.NewHTTPProber(cfg.Backend.BaseURL+"/health", 5*time.Second)
	poller := connectivity.NewPoller(monitor, prober, cfg.Sync.ProbeInterval, log)

	categories := refdata.NewCategoryCache(store, backend, monitor, cfg.Sync.CacheTTL, log)
	clients := refdata.NewClientCache(store, backend, monitor, cfg.Sync.CacheTTL, log)
	queue := pending.NewQueue(store, log)
	engine := syncer.NewEngine(queue, backend, monitor, syncer.OSFileSystem{}, log)
	submitter := syncer.NewSubmitter(backend, queue, monitor, log)
	drafts := draft.NewCapture(store, cfg.Sync.DraftDebounce, log)

	orch := orchestrator.New(orchestrator.Config{
		RefreshInterval: cfg.Sync.RefreshInterval,
	}, monitor, prober, categories, clients, queue, engine, drafts, log)

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatal("Failed to start orchestrator", zap.Error(err))
	}
	poller.Start(ctx)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "claimsync",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	handler := httpapi.NewHandler(monitor, queue, engine, submitter, orch, categories, clients, drafts, store, log)
	handler.Register(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	poller.Stop()
	orch.Stop()

	log.Info("Daemon exited")
}

// loggingMiddleware logs each request with latency and status.
func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
