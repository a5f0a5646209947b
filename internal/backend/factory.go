package backend

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kindlecrm/internal/amqp"
	"kindlecrm/internal/composer"
	"kindlecrm/internal/config"
	"kindlecrm/internal/log"
	"kindlecrm/internal/session"
	ports "kindlecrm/internal/sheets"
	gsheet "kindlecrm/internal/sheets/google"
	"kindlecrm/internal/sheets/memory"
	"kindlecrm/internal/storage"
)

// Factory creates backends based on configuration
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Build creates the components of the web process. On error everything
// created so far is closed again.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if err := f.sessions(ctx, cfg, c); err != nil {
		return nil, err
	}
	if c.Drafts, err = f.Drafts(cfg); err != nil {
		return nil, err
	}
	c.addCleanup(c.Drafts.Close)
	if p, ok := c.Drafts.(interface{ Ping(context.Context) error }); ok {
		c.addCheck("sqlite", p.Ping)
	}

	c.Publisher = f.Publisher(cfg)
	if c.Publisher != nil {
		c.addCleanup(c.Publisher.Close)
		c.addCheck("amqp", func(context.Context) error { return c.Publisher.Ping() })
	}

	if c.Composer, err = f.Composer(ctx, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *Factory) sessions(ctx context.Context, cfg *config.Config, c *Components) error {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := session.NewRedis(rdb, cfg.SessionTTL)
		if err := store.Ping(ctx); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		c.Sessions = store
		c.addCleanup(rdb.Close)
		c.addCheck("redis", store.Ping)
		f.logger.Info("Initialized redis sessions", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	case config.BackendMemory, "":
		store := session.NewMemory(cfg.SessionMaxEntries, cfg.SessionTTL)
		c.Sessions = store
		c.SessionCleaner = store.Cleaner()
		f.logger.Info("Initialized in-memory sessions", "max_entries", cfg.SessionMaxEntries)
	default:
		return fmt.Errorf("unsupported session backend: %s", cfg.SessionBackend)
	}
	return nil
}

// Drafts opens the draft repository.
func (f *Factory) Drafts(cfg *config.Config) (storage.DraftRepository, error) {
	switch cfg.DraftBackend {
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite drafts", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case config.BackendMemory, "":
		f.logger.Info("Initialized in-memory drafts")
		return storage.NewMemoryDrafts(), nil
	default:
		return nil, fmt.Errorf("unsupported draft backend: %s", cfg.DraftBackend)
	}
}

// Publisher connects to the broker. It returns nil when AMQP is not
// configured or unreachable; drafts then wait for the worker sweep.
func (f *Factory) Publisher(cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// Composer selects the message composer.
func (f *Factory) Composer(ctx context.Context, cfg *config.Config) (composer.Composer, error) {
	switch cfg.ComposerBackend {
	case config.BackendGemini:
		g, err := composer.NewGemini(ctx, composer.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.ComposerTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini composer: %w", err)
		}
		f.logger.Info("Initialized Gemini composer", "model", cfg.GeminiModel)
		return g, nil
	case config.BackendTemplate, "":
		f.logger.Info("Initialized template composer")
		return composer.Template{Organization: cfg.Organization}, nil
	default:
		return nil, fmt.Errorf("unsupported composer backend: %s", cfg.ComposerBackend)
	}
}

// Archiver returns the Google Sheets archiver, or an in-memory one that
// only keeps rows for the life of the process when no spreadsheet is set.
func (f *Factory) Archiver(ctx context.Context, cfg *config.Config) (ports.DraftArchiver, error) {
	if !cfg.HasSheets() {
		f.logger.Warn("GOOGLE_SPREADSHEET_ID not set, archiving drafts in memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		DraftsSheet:        cfg.GoogleDraftsSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare drafts sheet: %w", err)
	}
	f.logger.Info("Initialized Google Sheets archive", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleDraftsSheet)
	return client, nil
}
