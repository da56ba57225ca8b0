package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/chatlog-analyzer/internal/application"
	appanalysis "github.com/bryanwahyu/chatlog-analyzer/internal/application/analysis"
	"github.com/bryanwahyu/chatlog-analyzer/internal/config"
	"github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/chatlog-analyzer/internal/infra/ai/gemini"
	"github.com/bryanwahyu/chatlog-analyzer/internal/infra/ai/openai"
	"github.com/bryanwahyu/chatlog-analyzer/internal/infra/ai/prompt"
	mysqlp "github.com/bryanwahyu/chatlog-analyzer/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/chatlog-analyzer/internal/infra/db/postgres"
	"github.com/bryanwahyu/chatlog-analyzer/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/chatlog-analyzer/internal/infra/storage"
	"github.com/bryanwahyu/chatlog-analyzer/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := newLogger(cfg)

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			log.WithError(err).Warn("sentry init failed")
		} else {
			log.Info("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	db, repo, failures, err := openDatabase(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.Database.Driver).Fatal("database init error")
	}
	defer db.Close()

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	svc := &appanalysis.Service{
		Repo:     repo,
		Failures: failures,
		Clock:    application.SystemClock{},
		Provider: cfg.AI.Provider,
		Log:      log,
	}

	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.WithError(err).Fatal("minio init error")
		}
		svc.Archive = store
		checkers["storage"] = &middleware.StorageHealthChecker{Store: store}
	}

	prompts, err := prompt.Load(cfg.AI.SystemInstructionFile, cfg.AI.ResponseSchemaFile)
	if err != nil {
		log.WithError(err).Fatal("prompt load error")
	}

	factory, model := providerFactory(cfg.AI)
	svc.Model = model
	svc.Analyzer = &appanalysis.Analyzer{
		Credentials:    config.EnvCredential{Names: cfg.AI.APIKeyEnv},
		NewClient:      factory,
		Prompts:        prompts,
		Model:          model,
		BaseURL:        cfg.AI.BaseURL,
		ThinkingBudget: cfg.AI.ThinkingBudget,
		Log:            log,
	}
	if (config.EnvCredential{Names: cfg.AI.APIKeyEnv}).APIKey() == "" {
		log.WithField("env", cfg.AI.APIKeyEnv).Warn("no AI API key set; analyses will fail until one is provided")
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthCheckers: checkers,
		Log:            log,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// model calls with a large thinking budget can take minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "provider": cfg.AI.Provider, "model": model}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithError(err).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Repository, domain.FailureRepository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pgp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return db, pgp.NewAnalysisRepository(db), pgp.NewFailureRepository(db), nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return db, mysqlp.NewAnalysisRepository(db), mysqlp.NewFailureRepository(db), nil
	}
}

func providerFactory(c config.AIConfig) (ai.ClientFactory, string) {
	switch c.Provider {
	case "openai":
		model := c.Model
		if model == "" {
			model = openai.DefaultModel
		}
		return openai.NewClient, model
	default:
		model := c.Model
		if model == "" {
			model = gemini.DefaultModel
		}
		return gemini.NewClient, model
	}
}
