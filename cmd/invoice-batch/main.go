package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-intake/internal/async"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/export"
	"github.com/joseph-ayodele/invoice-intake/internal/ingest"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
)

// invoice-batch recognizes every document under a directory and writes a
// review workbook. Nothing is stored.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	fs := ff.NewFlagSet("invoice-batch")
	var (
		dir        = fs.StringLong("dir", "", "Directory to scan for invoices (required)")
		out        = fs.StringLong("out", "batch.xlsx", "Output workbook path")
		workers    = fs.IntLong("workers", 4, "Concurrent recognitions")
		timeout    = fs.DurationLong("timeout", 3*time.Minute, "Per-document recognition timeout")
		skipHidden = fs.BoolLong("skip-hidden", "Skip hidden files and directories")
		recURL     = fs.StringLong("recognition-url", "", "Remote recognizer URL (empty means local OCR only)")
		recKey     = fs.StringLong("recognition-key", "", "Remote recognizer API key")
		lang       = fs.StringLong("tesseract-lang", "spa+deu", "Tesseract language list")
		tessdata   = fs.StringLong("tessdata", "", "Tesseract data directory")
	)
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_BATCH"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dir == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: --dir is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := recognition.FromConfig(&common.Config{
		OCR: common.OCRConfig{
			TesseractLang:       *lang,
			TessdataDir:         *tessdata,
			EnableTSVConfidence: true,
		},
		Recognition: common.RecognitionConfig{
			URL:     *recURL,
			APIKey:  *recKey,
			Timeout: 45 * time.Second,
		},
	}, logger)
	if err != nil {
		logger.Error("failed to build recognition chain", "error", err)
		os.Exit(1)
	}

	paths, stats, err := ingest.Collect(*dir, *skipHidden)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("batch.scan.ok", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "unreadable", stats.Failed)

	start := time.Now()
	batch := ingest.NewBatch(chain, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(len(paths)+1),
		async.WithProcessTimeout(*timeout),
	)
	rows := batch.Run(ctx, paths)

	var failed int
	for _, r := range rows {
		if r.Err != nil {
			failed++
		}
	}

	xlsx, err := export.BatchReportXLSX(rows)
	if err != nil {
		logger.Error("failed to build report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write report", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch.done",
		"documents", len(rows),
		"failed", failed,
		"out", *out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if failed > 0 {
		os.Exit(3)
	}
}
