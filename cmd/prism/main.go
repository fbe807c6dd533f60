package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prism/internal/adapter/ark"
	adapthttp "prism/internal/adapter/http"
	"prism/internal/adapter/memory"
	"prism/internal/adapter/postgres"
	"prism/internal/adapter/realtime"
	"prism/internal/adapter/storage"
	"prism/internal/app"
	"prism/internal/config"
	"prism/internal/domain"
	"prism/internal/jobs"
	"prism/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// store is the persistence surface shared by both backends.
type store interface {
	domain.UserRepository
	domain.MealStore
	domain.ConditionRepository
	domain.MessageRepository
	domain.ChatRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db       store
		sessions domain.SessionRepository
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		defer func() { _ = pg.Close() }()
		db, sessions = pg, postgres.NewSessionRepo(pg)
		log.Info("using postgres store")
	} else {
		mem := memory.New()
		db, sessions = mem, mem.NewSessionRepo()
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	images, uploadDir, err := imageStore(ctx, cfg)
	if err != nil {
		return err
	}

	model, err := ark.New(ark.Config{
		APIKey:      cfg.ArkAPIKey,
		BaseURL:     cfg.ArkBaseURL,
		ChatModel:   cfg.ChatModel,
		VisionModel: cfg.VisionModel,
	})
	var modelClient app.ModelClient = model
	if err != nil {
		log.Warn("model client disabled", zap.Error(err))
		modelClient = unavailableModel{}
	}

	oidcCfg, err := oidcConfig(ctx, cfg)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(log.Named("realtime"), cfg.CORSOrigins)
	defer hub.Close()

	authSvc := app.NewAuthService(db, sessions, db, app.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL), cfg.RefreshTTL)
	messageSvc := app.NewMessageService(db, hub)
	alertSvc := app.NewAlertService(db, db, db, messageSvc, log.Named("alerts"))
	mealSvc := app.NewMealService(db, app.NewReconciler(db, db), alertSvc)
	chatSvc := app.NewChatService(db, db, mealSvc, modelClient, images)

	scheduler, err := jobs.New(alertSvc, authSvc, cfg.BriefSchedule, log.Named("jobs"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	h := adapthttp.New(adapthttp.Services{
		Auth:       authSvc,
		Meals:      mealSvc,
		Conditions: app.NewConditionService(db),
		Messages:   messageSvc,
		Chat:       chatSvc,
		Stream:     hub,
	}, adapthttp.Options{
		Version:           version,
		CORSOrigins:       cfg.CORSOrigins,
		ForwardAuthHeader: cfg.ForwardAuthHeader,
		UploadDir:         uploadDir,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		OIDC:              oidcCfg,
	}, log.Named("http")).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// imageStore picks S3 when a bucket is configured and local disk
// otherwise. The returned directory is non-empty only for local disk.
func imageStore(ctx context.Context, cfg *config.Config) (app.ImageStore, string, error) {
	if cfg.S3Bucket != "" {
		s, err := storage.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	}
	l, err := storage.NewLocal(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	return l, cfg.UploadDir, nil
}

func oidcConfig(ctx context.Context, cfg *config.Config) (*adapthttp.OIDCConfig, error) {
	if !cfg.OIDCEnabled() {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return &adapthttp.OIDCConfig{
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// unavailableModel answers every call with an error when no model
// credentials are configured.
type unavailableModel struct{}

var errNoModel = errors.New("model not configured")

func (unavailableModel) Chat(context.Context, app.CompletionRequest) (*app.Completion, error) {
	return nil, errNoModel
}

func (unavailableModel) Vision(context.Context, []byte, string, string, app.CompletionRequest) (*app.Completion, error) {
	return nil, errNoModel
}
