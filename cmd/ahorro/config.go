package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/ahorro/internal/receipt"
	"github.com/zombor/ahorro/internal/scanning"
)

// config holds the flags shared by every subcommand
type config struct {
	dbPath         *string
	dbBackend      *string
	storagePath    *string
	storageBackend *string
	gcsBucket      *string
	gcsPrefix      *string
	scannerType    *string
	geminiKey      *string
	geminiModel    *string
	ollamaURL      *string
	ollamaModel    *string
	openAIKey      *string
	openAIModel    *string
	scanTimeout    *time.Duration
	workers        *int
	logLevel       *string
	showVersion    *bool
}

func (c *config) register(fs *ff.FlagSet) {
	c.dbPath = fs.StringLong("db", "ahorro.db", "Database file path")
	c.dbBackend = fs.StringLong("db-backend", "bolt", "Database backend: 'bolt' or 'sqlite'")
	c.storagePath = fs.StringLong("storage", "./receipts", "Storage directory path")
	c.storageBackend = fs.StringLong("storage-backend", "local", "Attachment storage: 'local' or 'gcs'")
	c.gcsBucket = fs.StringLong("gcs-bucket", "", "GCS bucket for attachments")
	c.gcsPrefix = fs.StringLong("gcs-prefix", "", "Object name prefix inside the GCS bucket")
	c.scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama', 'openai' or 'fallback'")
	c.geminiKey = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	c.geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	c.ollamaURL = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
	c.ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
	c.openAIKey = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	c.openAIModel = fs.StringLong("openai-model", "gpt-4.1-mini", "OpenAI model name")
	c.scanTimeout = fs.DurationLong("scan-timeout", 0, "Timeout for one extraction request (0 disables it)")
	c.workers = fs.IntLong("workers", 2, "Documents extracted at the same time")
	c.logLevel = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
	c.showVersion = fs.BoolLong("version", "Show version information")
}

func (c *config) setupLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(*c.logLevel),
	})))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// app is the wired set of components behind every subcommand
type app struct {
	db       receipt.CollectionStore
	storage  receipt.Storage
	scanner  scanning.Scanner
	repo     *receipt.Repository
	pipeline *receipt.Pipeline
	closers  []func() error
}

// openApp opens storage, loads the collection and builds the pipeline
func openApp(ctx context.Context, c *config) (*app, error) {
	a := &app{}

	slog.Info("Initializing database...", "backend", *c.dbBackend, "path", *c.dbPath)
	switch *c.dbBackend {
	case "bolt":
		db, err := receipt.NewBoltDB(*c.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
	case "sqlite":
		db, err := receipt.NewSQLiteDB(*c.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
	default:
		return nil, fmt.Errorf("invalid database backend %q: valid backends are bolt, sqlite", *c.dbBackend)
	}
	a.closers = append(a.closers, a.db.Close)

	slog.Info("Initializing storage...", "backend", *c.storageBackend)
	switch *c.storageBackend {
	case "local":
		store, err := receipt.NewLocalStorage(*c.storagePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.storage = store
	case "gcs":
		if *c.gcsBucket == "" {
			a.Close()
			return nil, fmt.Errorf("--gcs-bucket is required with the gcs storage backend")
		}
		store, err := receipt.NewGCSStorage(ctx, *c.gcsBucket, *c.gcsPrefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.storage = store
		a.closers = append(a.closers, store.Close)
	default:
		a.Close()
		return nil, fmt.Errorf("invalid storage backend %q: valid backends are local, gcs", *c.storageBackend)
	}

	scanner, err := scanning.New(scanning.Config{
		Provider:    *c.scannerType,
		GeminiKey:   firstNonEmpty(*c.geminiKey, os.Getenv("GEMINI_API_KEY")),
		GeminiModel: *c.geminiModel,
		OllamaURL:   *c.ollamaURL,
		OllamaModel: *c.ollamaModel,
		OpenAIKey:   firstNonEmpty(*c.openAIKey, os.Getenv("OPENAI_API_KEY")),
		OpenAIModel: *c.openAIModel,
		Timeout:     *c.scanTimeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing scanner: %w", err)
	}
	a.scanner = scanner
	a.closers = append(a.closers, scanner.Close)

	a.repo = receipt.NewRepository(a.db, a.storage)
	if err := a.repo.Load(); err != nil {
		// An unreadable collection starts empty; the next mutation overwrites it
		slog.Error("Failed to load receipts, starting with an empty collection", "error", err)
	}
	a.pipeline = receipt.NewPipeline(a.repo, a.scanner, a.storage, *c.workers)
	return a, nil
}

// Close waits for pending ingestion and releases every resource in reverse order
func (a *app) Close() {
	if a.pipeline != nil {
		a.pipeline.Wait()
	}
	if a.repo != nil {
		a.repo.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
}
