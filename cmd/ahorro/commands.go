package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/zombor/ahorro/internal/analytics"
	"github.com/zombor/ahorro/internal/query"
	"github.com/zombor/ahorro/internal/receipt"
	"github.com/zombor/ahorro/internal/server"
)

func runServe(ctx context.Context, cfg *config, addr, authUser, authPass string) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	queries := query.NewEngine()
	summaries := analytics.NewEngine()
	go queries.Run(ctx, a.repo.Subscribe())
	go summaries.Run(ctx, a.repo.Subscribe())

	srv := server.NewServer(server.Deps{
		Records:   a.repo,
		Ingester:  a.pipeline,
		Files:     a.storage,
		Queries:   queries,
		Analytics: summaries,
	}, server.BasicAuth{Username: authUser, Password: authPass})

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if authUser != "" || authPass != "" {
		slog.Info("Basic auth enabled", "user", authUser)
	}

	// Start returns only after in-flight requests drain, so the deferred
	// Close never pulls the pipeline out from under a handler.
	if err := srv.Start(ctx, addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// mimeTypeFor guesses a document's type from its extension
func mimeTypeFor(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".heic", ".HEIC":
		return "image/heic"
	case ".heif", ".HEIF":
		return "image/heif"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

func runIngest(ctx context.Context, cfg *config, paths []string, description, location string) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	type pending struct {
		path   string
		result <-chan receipt.Result
	}

	var queued []pending
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		queued = append(queued, pending{
			path: path,
			result: a.pipeline.Submit(receipt.Submission{
				Data:                data,
				Filename:            filepath.Base(path),
				MimeType:            mimeTypeFor(path),
				Description:         description,
				CaptureDate:         time.Now(),
				LocationDescription: location,
			}),
		})
	}

	var failed int
	for _, p := range queued {
		res := <-p.result
		if res.Err != nil {
			failed++
			printIngestError(os.Stdout, p.path, res.Err)
			continue
		}
		printReceipt(os.Stdout, *res.Receipt)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(queued))
	}
	return nil
}

func runAsk(cfg *config, prompt string) error {
	a, err := openApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := query.NewEngine()
	engine.Observe(a.repo.Snapshot())
	printAnswer(os.Stdout, engine.Resolve(prompt))
	return nil
}

func runSummary(cfg *config) error {
	a, err := openApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := analytics.NewEngine()
	engine.Observe(a.repo.Snapshot())
	summary, ok := engine.Current()
	printSummary(os.Stdout, summary, ok)
	return nil
}
