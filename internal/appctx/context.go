package appctx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/arbiq/scanner/internal/config"
	"github.com/arbiq/scanner/internal/convergence"
	"github.com/arbiq/scanner/internal/fetch"
	"github.com/arbiq/scanner/internal/gate"
	"github.com/arbiq/scanner/internal/lag"
	"github.com/arbiq/scanner/internal/messaging"
	"github.com/arbiq/scanner/internal/metrics"
	"github.com/arbiq/scanner/internal/net/budget"
	"github.com/arbiq/scanner/internal/net/circuit"
	"github.com/arbiq/scanner/internal/net/client"
	"github.com/arbiq/scanner/internal/net/ratelimit"
	"github.com/arbiq/scanner/internal/orchestrator"
	"github.com/arbiq/scanner/internal/peripheral"
	"github.com/arbiq/scanner/internal/persistence"
	"github.com/arbiq/scanner/internal/safety"
	"github.com/arbiq/scanner/internal/tickerregistry"
	"github.com/arbiq/scanner/internal/track"
	"github.com/arbiq/scanner/internal/venue"
	"github.com/arbiq/scanner/internal/venue/binance"
	"github.com/arbiq/scanner/internal/venue/kraken"
	"github.com/arbiq/scanner/internal/venue/okx"
)

// cooldownDefault is used when a loaded Settings value has not set
// AlertCooldownSeconds yet (only possible if LoadSettings somehow
// returned a zero value, which its required-key check should prevent).
const cooldownDefault = 15 * time.Minute

// Context is the fully wired process-level dependency graph (§9: no global
// singletons — every package below receives exactly what it declares it
// needs, nothing reaches for ambient state).
type Context struct {
	Postgres *PostgresManager
	Redis    *RedisManager

	Venues   *venue.Registry
	Settings *config.Settings
	Notifier messaging.Notifier
	Metrics  *metrics.Registry

	Funding *peripheral.FundingAlerter
	ZScore  *peripheral.ZScoreEngine
	Depeg   *peripheral.DepegMonitor

	Orchestrator *orchestrator.Orchestrator
}

// New builds the entire dependency graph described by cfg: venue
// transport, persistence, the ticker registry, gating, convergence
// tracking, alerting, metrics, the peripheral engines (§4.12), and the
// orchestrator that ticks all of it. Grounded on the teacher's
// infrastructure/db.NewManager wiring style, generalized from "one
// Postgres connection" to the full graph this process needs.
func New(ctx context.Context, cfg Config) (*Context, error) {
	pg, err := NewPostgresManager(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("appctx: postgres: %w", err)
	}

	rd, err := NewRedisManager(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("appctx: redis: %w", err)
	}

	venuesCfg, err := config.LoadVenuesConfig(cfg.VenuesConfigPath)
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, fmt.Errorf("appctx: venues config: %w", err)
	}

	rateLimitMgr := ratelimit.NewManager()
	registry, err := buildVenues(venuesCfg, rateLimitMgr)
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, fmt.Errorf("appctx: build venue registry: %w", err)
	}

	settings, err := config.LoadSettings(ctx, cfg.SettingsPath, rd.Store())
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, fmt.Errorf("appctx: load settings: %w", err)
	}

	tickers := tickerregistry.New()
	fetcher := fetch.New(registry, rateLimitMgr, venuesCfg.Global.MaxParallelVenues)

	spreadAge := track.NewSpreadAgeTracker()
	depthHistory := track.NewDepthHistoryCollector(
		settings.WarningDepthRatio, settings.MinDepthVsHistoryRatio, settings.MinHistorySamples)

	symbols, exchanges, addresses, err := rd.Store().LoadBlacklist(ctx)
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, fmt.Errorf("appctx: load blacklist: %w", err)
	}
	blacklist := gate.NewBlacklist(symbols, exchanges, addresses)
	cooldown := cooldownDefault
	if settings.AlertCooldownSeconds > 0 {
		cooldown = time.Duration(settings.AlertCooldownSeconds) * time.Second
	}
	g := gate.New(rd.Store(), blacklist, cooldown)

	convergenceTracker := convergence.New(
		pg.Repository().Convergence,
		pg.Repository().Signals,
		NewLiveQuoteSource(registry),
		convergence.DefaultConfig(),
	)

	lagDetector := lag.NewDetector(2, decimal.NewFromFloat(1.0), 3)

	notifier, err := buildNotifier(cfg.Telegram)
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, fmt.Errorf("appctx: notifier: %w", err)
	}

	metricsRegistry := metrics.New()

	funding := &peripheral.FundingAlerter{
		Venues:       registry,
		Tickers:      tickers,
		Repo:         pg.Repository().Peripheral,
		Notifier:     notifier,
		ThresholdBps: cfg.Peripheral.FundingThresholdBps,
	}
	zscore := buildZScoreEngine(rd.Store(), pg.Repository().Peripheral, notifier, cfg.Peripheral)
	depeg := buildDepegMonitor(registry, notifier, settings, cfg.Peripheral)

	jobs := orchestrator.DefaultJobs()
	if cfg.JobsConfigPath != "" {
		loaded, err := orchestrator.LoadJobConfig(cfg.JobsConfigPath)
		if err != nil {
			rd.Close()
			pg.Close()
			return nil, fmt.Errorf("appctx: load job config: %w", err)
		}
		jobs = loaded
	}

	deps := &orchestrator.Deps{
		Venues:       registry,
		VenuesConfig: venuesCfg,
		Tickers:      tickers,
		Fetcher:      fetcher,
		Store:        rd.Store(),
		Repo:         pg.Repository(),
		Gate:         g,
		Convergence:  convergenceTracker,
		Lag:          lagDetector,
		Notifier:     notifier,
		Metrics:      metricsRegistry,
		Settings:     settings,

		SpreadAge:    spreadAge,
		DepthHistory: depthHistory,

		TargetPositionUSD: decimal.NewFromInt(int64(settings.SuggestedPositionUSD)),
		MaxPriceAgeMs:     int64(settings.MaxLatencyMs),
	}

	orch := orchestrator.New(jobs, deps, metricsRegistry)

	return &Context{
		Postgres:     pg,
		Redis:        rd,
		Venues:       registry,
		Settings:     settings,
		Notifier:     notifier,
		Metrics:      metricsRegistry,
		Funding:      funding,
		ZScore:       zscore,
		Depeg:        depeg,
		Orchestrator: orch,
	}, nil
}

// Close releases the Postgres and Redis connections.
func (c *Context) Close() error {
	var errs []error
	if err := c.Redis.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Postgres.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("appctx: close: %v", errs)
	}
	return nil
}

// buildVenues wires the rate-limit/circuit/budget/client middleware stack
// per configured venue and registers each venue's concrete adapter,
// grounded on the teacher's own per-provider client.Manager wiring in its
// CLI bootstrap. rateLimitMgr is shared with the fetch.Pool so a venue's
// HTTP transport and its tick-level fetch pacing draw on the same token
// bucket instead of two independently-paced limiters fighting each other.
func buildVenues(venuesCfg *config.VenuesConfig, rateLimitMgr *ratelimit.Manager) (*venue.Registry, error) {
	circuitMgr := circuit.NewManager(circuit.DefaultConfig())
	budgetMgr := budget.NewManager()
	clientMgr := client.NewManager(rateLimitMgr, circuitMgr, budgetMgr)

	registry := venue.NewRegistry()

	for name, vc := range venuesCfg.Venues {
		if !vc.Enabled {
			continue
		}
		rateLimitMgr.AddProvider(name, float64(vc.RPS), vc.Burst)
		budgetMgr.AddProvider(name, int64(vc.DailyBudget), venuesCfg.Budget.ResetHour, venuesCfg.Budget.WarnThreshold)
		clientMgr.AddProvider(name, vc.Host, vc.GetRequestTimeout())

		httpClient, _ := clientMgr.GetClient(name)

		adapter, err := newAdapter(name, vc, httpClient)
		if err != nil {
			return nil, err
		}
		registry.Register(adapter, adapter.Capabilities())
	}

	return registry, nil
}

func newAdapter(name string, vc config.VenueConfig, httpClient *http.Client) (venue.Adapter, error) {
	switch name {
	case "binance":
		return binance.New(httpClient), nil
	case "kraken":
		return kraken.New(httpClient), nil
	case "okx":
		return okx.New(httpClient), nil
	default:
		return nil, fmt.Errorf("no adapter registered for venue %q (type %s) — add one to appctx.newAdapter", name, vc.Type)
	}
}

func buildNotifier(cfg TelegramConfig) (messaging.Notifier, error) {
	if !cfg.Enabled {
		return noopNotifier{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return messaging.NewTelegramNotifier(bot, cfg.ChatID), nil
}

// noopNotifier discards every notification — used when Telegram alerting
// is disabled (e.g. local dry runs) so the rest of the graph never has to
// nil-check the notifier.
type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, n messaging.Notification) (*int64, error) {
	return nil, nil
}

func buildZScoreEngine(source peripheral.PriceSnapshot, repo persistence.PeripheralRepo, notifier messaging.Notifier, cfg PeripheralConfig) *peripheral.ZScoreEngine {
	pairs := make([]peripheral.PairConfig, 0, len(cfg.ZScorePairs))
	for _, p := range cfg.ZScorePairs {
		pairs = append(pairs, peripheral.PairConfig{
			VenueID: p.VenueID,
			SymbolA: p.SymbolA,
			SymbolB: p.SymbolB,
			ZBound:  p.ZBound,
		})
	}
	return &peripheral.ZScoreEngine{
		Source:   source,
		Repo:     repo,
		Notifier: notifier,
		Pairs:    pairs,
	}
}

func buildDepegMonitor(venues *venue.Registry, notifier messaging.Notifier, settings *config.Settings, cfg PeripheralConfig) *peripheral.DepegMonitor {
	var venueIDs []string
	for _, reg := range venues.All() {
		if reg.Capabilities.Has(venue.CapQuotes) {
			venueIDs = append(venueIDs, reg.Adapter.Name())
		}
	}
	return &peripheral.DepegMonitor{
		Venues:   venues,
		Symbols:  cfg.StablecoinSymbols,
		VenueIDs: venueIDs,
		DepegBps: cfg.DepegThresholdBps,
		Thresholds: safety.Thresholds{
			MaxBidAskSpreadPct: decimal.NewFromFloat(settings.MaxBidAskSpreadPct),
			MaxLatencyMs:       int64(settings.MaxLatencyMs),
		},
		Notifier: notifier,
	}
}
