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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appai "github.com/bryanwahyu/sketch2sys/internal/application/ai"
	appdiagram "github.com/bryanwahyu/sketch2sys/internal/application/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/application/workspace"
	"github.com/bryanwahyu/sketch2sys/internal/config"
	"github.com/bryanwahyu/sketch2sys/internal/domain/analysis"
	"github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	openaiclient "github.com/bryanwahyu/sketch2sys/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/sketch2sys/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/sketch2sys/internal/infra/db/postgres"
	"github.com/bryanwahyu/sketch2sys/internal/infra/executor/mermaid"
	"github.com/bryanwahyu/sketch2sys/internal/infra/httpserver"
	"github.com/bryanwahyu/sketch2sys/internal/infra/storage"
	"github.com/bryanwahyu/sketch2sys/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	setupLogging(cfg)

	if cfg.Inference.APIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// audit trail (optional)
	var records analysis.Repository
	health := map[string]middleware.HealthChecker{}
	if db, repo, err := openAudit(ctx, cfg); err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Audit.Driver).Msg("audit database error")
	} else if db != nil {
		defer db.Close()
		records = repo
		health["database"] = repo
	}

	// previews
	var previews sketch.PreviewStore
	var previewSource httpserver.PreviewSource
	switch cfg.Previews.Driver {
	case "minio":
		store, err := storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Previews.URLExpiry,
			cfg.Previews.MaxDimension,
			cfg.Previews.MaxPixels,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		previews = store
		health["minio"] = store
	default:
		store := storage.NewMemoryStore("/previews/", cfg.Previews.MaxDimension, cfg.Previews.MaxPixels)
		previews = store
		previewSource = store
	}

	metrics := middleware.NewMetrics()

	client := openaiclient.NewClient(cfg.Inference.APIKey, cfg.Inference.BaseURL, cfg.Inference.Model)
	aiSvc := appai.NewService(client, records, client.ModelName(), log.Logger)

	runner := mermaid.NewRunner(mermaid.Mode(cfg.Renderer.Mode), cfg.Renderer.Binary, cfg.Renderer.Image, cfg.Renderer.TempDir, cfg.Renderer.Timeout)
	renderer := appdiagram.NewRenderer(runner, diagram.DarkTheme(), log.Logger).OnFailure(metrics.RenderFailed)

	sessions := workspace.NewSessions(func() *workspace.Orchestrator {
		return workspace.New(aiSvc, previews, renderer,
			workspace.WithMetrics(metrics),
			workspace.WithTimeout(cfg.Inference.Timeout),
			workspace.WithLogger(log.With().Str("component", "orchestrator").Logger()),
		)
	}, cfg.Session.TTL, log.Logger)
	go sessions.Run(ctx, cfg.Session.SweepEvery)

	ready := map[string]middleware.HealthChecker{"renderer": runner}
	for name, c := range health {
		ready[name] = c
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer limiter.Stop()

	handler := httpserver.NewRouter(httpserver.Deps{
		Sessions:       sessions,
		AI:             aiSvc,
		Renderer:       renderer,
		Previews:       previewSource,
		Metrics:        metrics,
		Health:         health,
		Ready:          ready,
		Limiter:        limiter,
		APIKeys:        cfg.Auth.APIKeys,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		CookieName:     cfg.Session.CookieName,
		SecureCookie:   cfg.Session.SecureCookie,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Log:            log.Logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("model", client.ModelName()).Str("renderer", cfg.Renderer.Mode).
			Str("previews", cfg.Previews.Driver).Str("audit", cfg.Audit.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	sessions.Close(ctx2)
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Log.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

type auditRepo interface {
	analysis.Repository
	middleware.HealthChecker
	EnsureSchema(ctx context.Context) error
}

// openAudit connects the audit database; a nil db means auditing is off.
func openAudit(ctx context.Context, cfg *config.Config) (*sql.DB, auditRepo, error) {
	var (
		db   *sql.DB
		repo auditRepo
		err  error
	)
	switch cfg.Audit.Driver {
	case "mysql":
		if db, err = mysqlp.Connect(ctx, cfg.MySQLDSN()); err != nil {
			return nil, nil, err
		}
		repo = mysqlp.NewAnalysisRepository(db)
	case "postgres":
		if db, err = pgp.Connect(ctx, cfg.PostgresDSN()); err != nil {
			return nil, nil, err
		}
		repo = pgp.NewAnalysisRepository(db)
	default:
		return nil, nil, nil
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
