package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/config"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/dispatcher"
	"github.com/dwnode/dwnd/internal/logging"
	"github.com/dwnode/dwnd/internal/protocol"
	"github.com/dwnode/dwnd/internal/storage"
	wnsync "github.com/dwnode/dwnd/internal/sync"
	"github.com/dwnode/dwnd/internal/transport"
)

// didDocumentCacheTTL bounds how long a resolved did:web document is
// reused before CachingResolver refetches it.
const didDocumentCacheTTL = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dwnd HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("dwnd: failed to load configuration: %w", err)
	}

	ctx = logging.WithLogger(ctx, cfg.Logging.File, cfg.Logging.Verbose)
	logger := logging.FromContext(ctx).With("component", "dwnd")

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("dwnd: failed to open storage: %w", err)
	}

	records, err := storage.NewRecordStore(db)
	if err != nil {
		return fmt.Errorf("dwnd: failed to build record store: %w", err)
	}

	data, err := storage.NewDataStore(db)
	if err != nil {
		return fmt.Errorf("dwnd: failed to build data store: %w", err)
	}

	fetcher := didresolve.NewHTTPFetcher(cfg.Sync.Timeout)

	resolver := didresolve.NewMultiResolver()
	resolver.Register("key", didresolve.NewKeyResolver())
	resolver.Register("web", didresolve.NewCachingResolver(didresolve.NewWebResolver(fetcher), didDocumentCacheTTL))

	registry := protocol.NewRegistry()

	gate, err := protocol.NewGate()
	if err != nil {
		return fmt.Errorf("dwnd: failed to build authorization gate: %w", err)
	}

	validator := dispatcher.NewSchemaValidator(fetcher)

	queue := wnsync.NewQueue(cfg.Sync.QueueCapacity)

	chunkOpts := codec.ChunkOptions{ChunkSize: cfg.Storage.DataChunkSize, Fanout: cfg.Storage.DagLinkFanout}

	d := dispatcher.New(records, data, resolver, registry, gate, validator, queue, cfg.Sync.Peers, chunkOpts)

	stopCh := make(chan struct{})
	defer close(stopCh)

	dialer := transport.NewRemoteDialer(cfg.Sync.Timeout)

	for i := range cfg.Sync.Workers {
		worker := wnsync.NewWorker(i, d, dialer, queue.Items(), cfg.Sync.Timeout)
		go worker.Run(ctx, stopCh)
	}

	if len(cfg.Sync.Peers) > 0 {
		scheduler := wnsync.NewScheduler(records, dialer, queue, cfg.Sync.Interval, cfg.Sync.Peers)
		go scheduler.Run(ctx, stopCh)
	}

	server := transport.NewServer(d, records)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("dwnd listening", "address", cfg.ListenAddress)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err

			return
		}

		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dwnd: failed to shut down cleanly: %w", err)
		}

		return nil
	case err := <-errCh:
		return err
	}
}
