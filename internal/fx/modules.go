package fx

import (
	"context"
	"fmt"
	"os"

	fcm "firebase.google.com/go/v4"
	"github.com/amityadav/clipping/internal/admission"
	"github.com/amityadav/clipping/internal/blogger"
	"github.com/amityadav/clipping/internal/config"
	"github.com/amityadav/clipping/internal/core"
	"github.com/amityadav/clipping/internal/enrich"
	"github.com/amityadav/clipping/internal/firebase"
	"github.com/amityadav/clipping/internal/gemini"
	"github.com/amityadav/clipping/internal/logging"
	"github.com/amityadav/clipping/internal/newsapi"
	"github.com/amityadav/clipping/internal/notify"
	"github.com/amityadav/clipping/internal/rss"
	"github.com/amityadav/clipping/internal/scraper"
	"github.com/amityadav/clipping/internal/search"
	"github.com/amityadav/clipping/internal/serpapi"
	"github.com/amityadav/clipping/internal/settings"
	"github.com/amityadav/clipping/internal/store"
	"github.com/amityadav/clipping/internal/token"
	"github.com/amityadav/clipping/internal/youtube"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ============================================================================
// FX MODULES - Group related providers together
// ============================================================================

// ConfigModule provides application configuration and the root logger
var ConfigModule = fx.Module("config",
	fx.Provide(
		config.Load,
		NewLogger,
	),
)

// StoreModule provides the Firebase app and the configured store backend
var StoreModule = fx.Module("store",
	fx.Provide(
		NewFirebaseApp,
		NewStore,
	),
)

// SettingsModule seeds the global settings document on startup
var SettingsModule = fx.Module("settings",
	fx.Provide(NewSettingsService),
	fx.Invoke(SeedGlobalSettings),
)

// TokenModule provides JWT token management
var TokenModule = fx.Module("token",
	fx.Provide(NewTokenManager),
)

// ScraperModule provides media fetching
var ScraperModule = fx.Module("scraper",
	fx.Provide(scraper.NewScraper),
)

// EnrichModule provides the Gemini analyzers and the enrichment stage
var EnrichModule = fx.Module("enrich",
	fx.Provide(
		NewGeminiClient,
		NewEnrichStage,
	),
)

// SearchModule provides the registry with every source adapter
var SearchModule = fx.Module("search",
	fx.Provide(NewSearchRegistry),
)

// NotifyModule provides the FCM sender and the alert publisher
var NotifyModule = fx.Module("notify",
	fx.Provide(
		NewFirebaseSender,
		NewPublisher,
	),
)

// CoreModule provides the ingestion and correction cores
var CoreModule = fx.Module("core",
	fx.Provide(
		NewAdmissionGate,
		NewIngestCore,
		NewFixCore,
	),
)

// BaseModules is everything except the long-running servers and scheduler.
var BaseModules = fx.Options(
	ConfigModule,
	StoreModule,
	SettingsModule,
	TokenModule,
	ScraperModule,
	EnrichModule,
	SearchModule,
	NotifyModule,
	CoreModule,
)

// ============================================================================
// PROVIDER FUNCTIONS - Constructors that FX will call automatically
// ============================================================================

// NewLogger builds the root zap logger and flushes it on shutdown
func NewLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

// NewFirebaseApp initializes Firebase. It is required for the Firestore
// backend and optional otherwise (nil disables FCM).
func NewFirebaseApp(cfg config.Config, log *zap.Logger) (*fcm.App, error) {
	required := cfg.StoreDriver == config.DriverFirestore
	if !required && cfg.FirebaseProjectID == "" {
		if _, err := os.Stat(cfg.FirebaseCredPath); err != nil {
			log.Info("firebase disabled", zap.String("cred_path", cfg.FirebaseCredPath))
			return nil, nil
		}
	}

	app, err := firebase.NewApp(context.Background(), cfg.FirebaseProjectID, cfg.FirebaseCredPath)
	if err != nil {
		if required {
			return nil, err
		}
		log.Warn("firebase unavailable, notifications disabled", zap.Error(err))
		return nil, nil
	}
	log.Info("firebase app initialized", zap.String("project", cfg.FirebaseProjectID))
	return app, nil
}

// NewStore opens the backend selected by STORE_DRIVER
func NewStore(lc fx.Lifecycle, cfg config.Config, app *fcm.App, log *zap.Logger) (store.Store, error) {
	ctx := context.Background()
	var (
		st  store.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverFirestore:
		client, ferr := app.Firestore(ctx)
		if ferr != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", ferr)
		}
		st = store.NewFirestoreStore(client)
	case config.DriverPostgres:
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	case config.DriverSQLite:
		st, err = store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	case config.DriverMemory:
		st = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	log.Info("store initialized", zap.String("driver", cfg.StoreDriver))
	return st, nil
}

func NewSettingsService(st store.Store, log *zap.Logger) *settings.Service {
	return settings.NewService(st, log)
}

// SeedGlobalSettings writes defaults when the document is missing
func SeedGlobalSettings(lc fx.Lifecycle, cfg config.Config, svc *settings.Service) {
	if !cfg.SeedGlobalSettings {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.Seed(ctx)
			return err
		},
	})
}

// NewTokenManager creates JWT token manager
func NewTokenManager(cfg config.Config) *token.Manager {
	return token.NewManager(cfg.JWTSecret)
}

// NewGeminiClient creates the analyzers (optional - nil without GEMINI_API_KEY)
func NewGeminiClient(cfg config.Config, scr *scraper.Scraper, log *zap.Logger) *gemini.Client {
	if cfg.GeminiAPIKey == "" {
		log.Info("enrichment disabled (no GEMINI_API_KEY)")
		return nil
	}
	client, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, scr, log)
	if err != nil {
		log.Warn("enrichment disabled", zap.Error(err))
		return nil
	}
	log.Info("gemini analyzers initialized", zap.String("model", cfg.GeminiModel))
	return client
}

// NewEnrichStage wires the analyzers. A missing client must reach the stage
// as nil interfaces, not as typed nil pointers.
func NewEnrichStage(client *gemini.Client, cfg config.Config, log *zap.Logger) *enrich.Stage {
	var (
		s enrich.SentimentAnalyzer
		e enrich.EntityExtractor
		i enrich.ImageLabeler
	)
	if client != nil {
		s, e, i = client, client, client
	}
	return enrich.NewStage(s, e, i, enrich.Config{
		Concurrency:       cfg.EnrichConcurrency,
		RequestsPerSecond: cfg.EnrichRPS,
	}, log)
}

// NewSearchRegistry registers every adapter. Keys and endpoints are resolved
// from settings on each run, so nothing is filtered here.
func NewSearchRegistry(log *zap.Logger) *search.Registry {
	registry := search.NewRegistry()
	registry.Register(newsapi.NewClient("", log))
	registry.Register(serpapi.NewClient(log))
	registry.Register(youtube.NewSearchClient("", log))
	registry.Register(youtube.NewChannelClient("", log))
	registry.Register(blogger.NewClient("", log))
	registry.Register(rss.NewReader(log))
	log.Info("search registry initialized", zap.Int("sources", registry.Count()))
	return registry
}

// NewFirebaseSender creates the FCM sender (optional)
func NewFirebaseSender(app *fcm.App, log *zap.Logger) *firebase.Sender {
	if app == nil {
		return nil
	}
	sender, err := firebase.NewSender(context.Background(), app, log)
	if err != nil {
		log.Warn("FCM sender disabled", zap.Error(err))
		return nil
	}
	return sender
}

func NewPublisher(st store.Store, sender *firebase.Sender, cfg config.Config, log *zap.Logger) *notify.Publisher {
	var ts notify.TopicSender
	if sender != nil {
		ts = sender
	}
	return notify.NewPublisher(st, ts, cfg.NotifyTopic, log)
}

func NewAdmissionGate(cfg config.Config) *admission.Gate {
	return admission.NewGate(cfg.Location())
}

// IngestCoreParams groups dependencies for IngestCore
type IngestCoreParams struct {
	fx.In
	Store     store.Store
	Registry  *search.Registry
	Stage     *enrich.Stage
	Publisher *notify.Publisher
	Gate      *admission.Gate
	Config    config.Config
	Log       *zap.Logger
}

func NewIngestCore(p IngestCoreParams) *core.IngestCore {
	return core.NewIngestCore(p.Store, p.Registry, p.Stage, p.Publisher, p.Gate, core.IngestOptions{
		TenantConcurrency: p.Config.TenantConcurrency,
		SourceTimeout:     p.Config.SourceTimeout,
		MaxResults:        p.Config.MaxResults,
	}, p.Log)
}

func NewFixCore(st store.Store, cfg config.Config, log *zap.Logger) *core.FixCore {
	return core.NewFixCore(st, cfg.FixLockOwner, log)
}
