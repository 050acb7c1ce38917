package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/export"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	repo "github.com/joseph-ayodele/invoice-intake/internal/repository"
	"github.com/joseph-ayodele/invoice-intake/internal/server"
	"github.com/joseph-ayodele/invoice-intake/internal/services/invoice"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, db, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	if err := repo.SeedCategories(ctx, db, logger); err != nil {
		logger.Error("failed to seed categories", "error", err)
		os.Exit(1)
	}

	catalogRepo := repo.NewCatalogRepository(db, logger)
	invoiceRepo := repo.NewInvoiceRepository(db, logger)

	chain, err := recognition.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("failed to build recognition chain", "error", err)
		os.Exit(1)
	}

	invoices := invoice.NewService(chain, catalogRepo, invoiceRepo, logger,
		invoice.WithProgress(func(percent int, stage string) {
			logger.Info("recognition.progress", "percent", percent, "stage", stage)
		}),
	)
	exporter := export.NewService(invoiceRepo, logger)

	// HTTP surface
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewHTTPServer(invoices, exporter, logger,
			server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
			server.WithHealthCheck(func(ctx context.Context) error {
				return repo.HealthCheck(ctx, db, 2*time.Second, logger)
			}),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC surface
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	server.RegisterInvoiceServiceServer(grpcServer, server.NewInvoiceServer(invoices, logger))
	server.RegisterExportServiceServer(grpcServer, server.NewExportServer(exporter, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("invoice-intake listening", "grpc_addr", cfg.Server.GRPCAddr, "http_addr", cfg.Server.HTTPAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	invoices.Discard()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
}
