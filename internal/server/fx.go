// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/testimony-tracker/internal/api"
	"github.com/JakeFAU/testimony-tracker/internal/clock/system"
	"github.com/JakeFAU/testimony-tracker/internal/config"
	"github.com/JakeFAU/testimony-tracker/internal/download"
	collyfetcher "github.com/JakeFAU/testimony-tracker/internal/fetcher/colly"
	"github.com/JakeFAU/testimony-tracker/internal/logging"
	"github.com/JakeFAU/testimony-tracker/internal/merge"
	"github.com/JakeFAU/testimony-tracker/internal/metrics"
	"github.com/JakeFAU/testimony-tracker/internal/names"
	"github.com/JakeFAU/testimony-tracker/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/testimony-tracker/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/testimony-tracker/internal/publisher/pubsub"
	"github.com/JakeFAU/testimony-tracker/internal/refresher"
	localstorage "github.com/JakeFAU/testimony-tracker/internal/storage/local"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	refresher       *refresher.Refresher
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher

	closeOnce sync.Once
	closeErr  error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("bill", cfg.Source.Bill),
		zap.String("session", cfg.Source.Session),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Refresher returns the background refresher, for one-shot commands.
func (a *App) Refresher() *refresher.Refresher {
	return a.refresher
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the refresh loop and the HTTP server and blocks until the context is canceled,
// a termination signal arrives, or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.refresher.Startup(gctx)
		a.refresher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(closeCtx))
}

// Close gracefully shuts down the application. It is safe to call more than once.
func (a *App) Close(_ context.Context) error {
	a.closeOnce.Do(func() {
		if a.pubsubPublisher != nil {
			a.pubsubPublisher.Stop()
		}
		if a.pubsubClient != nil {
			if err := a.pubsubClient.Close(); err != nil {
				a.logger.Warn("pubsub client close failed", zap.Error(err))
				a.closeErr = fmt.Errorf("close pubsub client: %w", err)
			}
		}
		a.logger.Info("shutdown complete")
		if err := a.logger.Sync(); err != nil {
			a.logger.Debug("logger sync failed", zap.Error(err))
		}
	})
	return a.closeErr
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies around an existing logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	metrics.Init()

	app.logger.Info("building application dependencies")
	store, err := setupStorage(app)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	app.refresher = setupRefresher(app, store, publisher)
	app.apiServer = api.NewServer(app.refresher, *cfg, app.logger.Named("api"))
	return app, nil
}

func setupStorage(app *App) (*localstorage.Store, error) {
	store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.TestimonyDir})
	if err != nil {
		return nil, fmt.Errorf("testimony store init failed: %w", err)
	}
	app.logger.Debug("local testimony store", zap.String("path", store.Dir()))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (testimony.Publisher, error) {
	if app.cfg.PubSub.Topic == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(memorypublisher.DefaultLimit), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = app.pubsubClient.Publisher(app.cfg.PubSub.Topic)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.Topic),
	)
	return gcppublisher.New(app.pubsubPublisher, map[string]string{
		"bill":    app.cfg.Source.Bill,
		"session": app.cfg.Source.Session,
	}), nil
}

func setupRefresher(app *App, store *localstorage.Store, publisher testimony.Publisher) *refresher.Refresher {
	cfg := app.cfg
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.RequestTimeout(),
	})
	app.logger.Info("using colly listing fetcher", zap.String("user_agent", cfg.HTTP.UserAgent))

	downloader := download.New(download.Config{
		URLPrefix:  cfg.Source.DocumentURLPrefix(),
		UserAgent:  cfg.HTTP.UserAgent,
		Timeout:    cfg.DownloadTimeout(),
		MaxRetries: cfg.HTTP.MaxRetries,
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.HTTP.DownloadRPS,
			Burst: cfg.HTTP.DownloadBurst,
		}),
	}, store, app.logger.Named("download"))

	refreshCfg := refresher.Config{
		Bill:              cfg.Source.DisplayBill(),
		Session:           cfg.Source.Session,
		ListingURL:        cfg.Source.ListingURL(),
		CompareURL:        cfg.Source.CompareURL(),
		DocumentURLPrefix: cfg.Source.DocumentURLPrefix(),
		MergedPDFPath:     cfg.Storage.MergedPDFPath(),
		MergedTextPath:    cfg.Storage.MergedTextPath(),
		MissingNamesPath:  cfg.Storage.MissingNamesPath(),
		Topic:             cfg.PubSub.Topic,
		Names:             names.Options{FuzzyThreshold: cfg.Missing.FuzzyThreshold},
		Tick:              cfg.Schedule.Tick,
		UpdateEvery:       cfg.Schedule.UpdateEvery,
		PruneEvery:        cfg.Schedule.PruneEvery,
		RegenerateEvery:   cfg.Schedule.RegenerateEvery,
		PruneGrace:        cfg.Schedule.PruneGrace,
	}
	app.logger.Info("refresher config",
		zap.String("listing_url", refreshCfg.ListingURL),
		zap.String("compare_url", refreshCfg.CompareURL),
		zap.Duration("update_every", refreshCfg.UpdateEvery),
		zap.Duration("regenerate_every", refreshCfg.RegenerateEvery),
		zap.Duration("prune_every", refreshCfg.PruneEvery),
	)

	return refresher.New(
		refreshCfg,
		fetcher,
		downloader,
		store,
		merge.NewPDFUnite(cfg.Tools.PDFUnite, app.logger.Named("pdfunite")),
		merge.NewPDFToText(cfg.Tools.PDFToText, app.logger.Named("pdftotext")),
		publisher,
		system.New(),
		app.logger.Named("refresher"),
	)
}
