package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/novus/internal/clients/gemini"
	"github.com/bobmcallan/novus/internal/clients/mfapi"
	"github.com/bobmcallan/novus/internal/clients/yahoo"
	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/aggregate"
	"github.com/bobmcallan/novus/internal/services/assistant"
	"github.com/bobmcallan/novus/internal/services/ledger"
	"github.com/bobmcallan/novus/internal/services/market"
	"github.com/bobmcallan/novus/internal/services/resolver"
	"github.com/bobmcallan/novus/internal/services/seriescache"
	"github.com/bobmcallan/novus/internal/services/sip"
	"github.com/bobmcallan/novus/internal/storage/badger"
	"github.com/bobmcallan/novus/internal/storage/seriesdb"
)

// App holds all initialized services, clients and storage. HTTP handlers
// reach every service through the interface-typed fields.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Ledger      interfaces.PortfolioLedger
	Market      interfaces.MarketDataProvider
	Search      interfaces.InstrumentSearcher
	SIP         interfaces.SipSimulator
	Trends      interfaces.TrendBuilder
	Assistant   interfaces.PortfolioAssistant
	Series      *seriescache.Service
	Auth        *AuthWindow
	StartupTime time.Time

	stateStore  interfaces.StateStore
	seriesStore interfaces.SeriesStore
	scheduler   *Scheduler
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func resolvePath(binDir, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(binDir, path)
}

// NewApp initializes storage, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Config: provided path, NOVUS_CONFIG, binary dir, then the dev fallback
	if configPath == "" {
		configPath = os.Getenv("NOVUS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "novus.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/novus.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	config.Storage.State.Path = resolvePath(binDir, config.Storage.State.Path)
	config.Storage.Cache.Path = resolvePath(binDir, config.Storage.Cache.Path)
	config.Logging.FilePath = resolvePath(binDir, config.Logging.FilePath)

	logger := common.NewLoggerFromConfig(config.Logging)

	if missing := config.ValidateRequired(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Auth settings incomplete - logins will be rejected")
	}

	ctx := context.Background()

	stateStore, err := badger.NewStore(logger, config.Storage.State.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state storage: %w", err)
	}

	seriesStore, err := seriesdb.Open(ctx, logger, config.Storage.Cache.Path)
	if err != nil {
		stateStore.Close()
		return nil, fmt.Errorf("failed to initialize series cache: %w", err)
	}

	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)
	mfapiClient := mfapi.NewClient(
		mfapi.WithBaseURL(config.Clients.MFAPI.BaseURL),
		mfapi.WithLogger(logger),
		mfapi.WithRateLimit(config.Clients.MFAPI.RateLimit),
		mfapi.WithTimeout(config.Clients.MFAPI.GetTimeout()),
	)

	// A nil LLM makes the assistant answer from local heuristics.
	var llm interfaces.LLMClient
	if config.Clients.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, config.Clients.Gemini.APIKey,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithLogger(logger),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client - AI features will use local fallbacks")
		} else {
			llm = geminiClient
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - AI features will use local fallbacks")
	}

	seriesCache := seriescache.NewService(yahooClient, seriesStore, logger.WithComponent("seriescache"),
		seriescache.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)
	resolverService := resolver.NewService(yahooClient, seriesCache, mfapiClient, logger)
	marketService := market.NewService(seriesCache, mfapiClient, resolverService, logger, market.WithQuotes(yahooClient))
	sipService := sip.NewService(mfapiClient, logger)
	trendService := aggregate.NewService(marketService, logger, aggregate.WithConcurrency(config.Refresh.Concurrency))
	assistantService := assistant.NewService(llm, logger.WithComponent("assistant"))

	profile := models.DefaultProfile()
	if config.Profile.Name != "" {
		profile.Name = config.Profile.Name
	}
	if config.Profile.Currency != "" {
		profile.Currency = config.Profile.Currency
	}

	ledgerService := ledger.NewService(stateStore, marketService, resolverService, sipService, assistantService,
		logger.WithComponent("ledger"),
		ledger.WithConcurrency(config.Refresh.Concurrency),
		ledger.WithDefaultProfile(profile),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Ledger:      ledgerService,
		Market:      marketService,
		Search:      resolverService,
		SIP:         sipService,
		Trends:      trendService,
		Assistant:   assistantService,
		Series:      seriesCache,
		Auth:        NewAuthWindow(),
		StartupTime: startupStart,
		stateStore:  stateStore,
		seriesStore: seriesStore,
	}

	logger.Info().
		Str("config", configPath).
		Bool("ai", llm != nil).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")

	return a, nil
}

// StartScheduler registers the background refresh and cache cleanup jobs
// and starts the cron runner.
func (a *App) StartScheduler() error {
	s := NewScheduler(a.Logger)

	refresh := NewRefreshJob(a.Ledger, a.Auth, a.Logger)
	if err := s.AddJob(a.Config.Refresh.Schedule, refresh); err != nil {
		return fmt.Errorf("failed to register %s job: %w", refresh.Name(), err)
	}
	if a.Series != nil {
		cleanup := NewCleanupJob(a.Series, a.Logger)
		if err := s.AddJob(a.Config.Refresh.CleanupSchedule, cleanup); err != nil {
			return fmt.Errorf("failed to register %s job: %w", cleanup.Name(), err)
		}
	}

	s.Start()
	a.scheduler = s
	return nil
}

// Close stops background jobs and releases storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.seriesStore != nil {
		if err := a.seriesStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close series cache")
		}
		a.seriesStore = nil
	}
	if a.stateStore != nil {
		if err := a.stateStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close state storage")
		}
		a.stateStore = nil
	}
}
