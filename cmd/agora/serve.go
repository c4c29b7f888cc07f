package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/agora/internal/config"
	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/events"
	"github.com/alfredjeanlab/agora/internal/export"
	"github.com/alfredjeanlab/agora/internal/scheme"
	"github.com/alfredjeanlab/agora/internal/server"
	"github.com/alfredjeanlab/agora/internal/store"
	"github.com/alfredjeanlab/agora/internal/store/memstore"
	"github.com/alfredjeanlab/agora/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the agora gRPC and HTTP servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Open the journal.
		var journal store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cmd.Context(), cfg.DatabaseURL, postgres.DefaultOptions)
			if err != nil {
				return err
			}
			journal = pg
			logger.Info("journal: postgres")
		} else {
			journal = memstore.New()
			logger.Info("journal: in-memory (AGORA_DATABASE_URL not set)")
		}

		// Load the scheme catalog.
		catalog := scheme.NewBuiltinCatalog()
		if cfg.SchemesFile != "" {
			n, err := catalog.LoadFile(cfg.SchemesFile)
			if err != nil {
				journal.Close()
				return err
			}
			logger.Info("schemes loaded", "file", cfg.SchemesFile, "count", n)
		}

		// Create event publishers. The hub always feeds the SSE stream.
		hub := server.NewHub()
		var publisher events.Publisher = hub
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				journal.Close()
				return err
			}
			publisher = events.Multi(hub, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("NATS events disabled (AGORA_NATS_URL not set)")
		}

		// Create the engine and replay the journal.
		eng := engine.New(journal, engine.Options{
			Catalog:        catalog,
			Publisher:      publisher,
			Logger:         logger,
			RecomputeRetry: cfg.RecomputeRetry,
			LabelHistory:   cfg.LabelHistory,
			PreferredTTL:   cfg.PreferredCacheTTL,
		})
		restored, err := eng.Restore(context.Background())
		if err != nil {
			eng.Close()
			publisher.Close()
			journal.Close()
			return err
		}
		logger.Info("journal replayed", "deliberations", restored)

		// Create server components.
		srv := server.New(eng, hub, logger)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			eng.Close()
			publisher.Close()
			journal.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start export scheduler if any destinations are configured.
		scheduler := startExportScheduler(cfg, eng, publisher, logger)

		logger.Info("agora server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		eng.Close()
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := journal.Close(); err != nil {
			logger.Error("error closing journal", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// startExportScheduler starts periodic exports when an interval and at
// least one destination are configured. It returns nil otherwise.
func startExportScheduler(cfg *config.Config, source export.Source, publisher events.Publisher, logger *slog.Logger) *export.Scheduler {
	if cfg.ExportInterval <= 0 {
		return nil
	}
	var dests []export.Destination

	if cfg.ExportS3Bucket != "" {
		s3Dest, err := export.NewS3Destination(
			context.Background(),
			cfg.ExportS3Bucket,
			cfg.ExportS3Key,
			cfg.ExportS3Region,
			cfg.ExportS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}

	if cfg.ExportGitRepo != "" {
		dests = append(dests, export.NewGitDestination(cfg.ExportGitRepo, cfg.ExportGitFile, cfg.ExportGitBranch))
		logger.Info("export git destination enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := export.NewScheduler(source, dests, cfg.ExportInterval, publisher, logger)
	scheduler.Start()
	logger.Info("export scheduler started", "interval", cfg.ExportInterval)
	return scheduler
}
