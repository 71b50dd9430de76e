package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drain-audit/internal/alerting"
	"drain-audit/internal/cache"
	"drain-audit/internal/config"
	"drain-audit/internal/fetcher"
	"drain-audit/internal/scheduler"
	"drain-audit/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() *fetcher.Client {
	var store cache.Cache
	if a.Config.Cache.Enabled {
		store = cache.NewTTL(a.Config.Cache.TTL)
	}
	return fetcher.NewClient(fetcher.Options{
		BaseURL:   a.Config.Upstream.BaseURL,
		Timeout:   a.Config.Upstream.RequestTimeout,
		UserAgent: a.Config.Upstream.UserAgent,
	}, store, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newAuditor() *service.Auditor {
	client := a.newClient()
	return service.New(a.Config, client, client, client, a.newNotifier(), a.Logger)
}

// Run executes the long-running scheduled audit service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	auditor := a.newAuditor()

	a.Logger.Info().Msg("starting drain audit service")
	err := sched.Run(ctx, auditor.RunBucket)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("drain audit service stopped")
	return nil
}

// RunOnce executes a single audit bucket immediately, without the scheduler.
// The bucket is the current interval boundary so alerts line up with what a
// scheduled run would have reported.
func (a *App) RunOnce(ctx context.Context) error {
	bucket := time.Now().UTC()
	if interval := a.Config.Scheduler.Interval; interval > 0 && a.Config.Scheduler.AlignToBucket {
		bucket = bucket.Truncate(interval)
	}
	return a.newAuditor().RunBucket(ctx, bucket)
}

// AuditOptions configure the one-shot audit command.
type AuditOptions struct {
	JSON bool
}

// ForecastOptions configure the one-shot forecast command.
type ForecastOptions struct {
	JSON bool
}

// ExportOptions hold parameters for exporting one vessel's level history.
type ExportOptions struct {
	VesselID  string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}
