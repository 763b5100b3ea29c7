package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwnode/dwnd/internal/logging"
)

// MessageProcessor applies an inbound message the way the dispatcher
// would if it had arrived over the external interface: verifying its
// envelope and writing it through the record lifecycle. Defined here
// (rather than imported from the dispatcher package) so this package
// has no dependency on the dispatcher, which itself depends on sync to
// enqueue outgoing propagation work.
type MessageProcessor interface {
	ProcessSyncedRecord(ctx context.Context, remoteAddress, recordID string, remote RemoteClient) error
}

// Worker drains a Queue, pulling each named record from its remote
// and handing it to a MessageProcessor.
type Worker struct {
	id        int
	processor MessageProcessor
	remotes   RemoteDialer
	queue     <-chan WorkItem
	timeout   time.Duration
}

// RemoteDialer resolves a remote address to a RemoteClient, so the
// worker pool does not hard-code a transport.
type RemoteDialer interface {
	Dial(remoteAddress string) (RemoteClient, error)
}

// NewWorker builds a Worker reading from queue.
func NewWorker(id int, processor MessageProcessor, remotes RemoteDialer, queue <-chan WorkItem, timeout time.Duration) *Worker {
	return &Worker{id: id, processor: processor, remotes: remotes, queue: queue, timeout: timeout}
}

// Run drains the queue until ctx is done or stopCh is closed.
func (w *Worker) Run(ctx context.Context, stopCh <-chan struct{}) {
	logger := logging.FromContext(ctx).With("component", "sync.worker", "worker_id", w.id)
	logger.Info("sync worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync worker stopping: context cancelled")

			return
		case <-stopCh:
			logger.Info("sync worker stopping: stop signal")

			return
		case item := <-w.queue:
			w.process(ctx, logger, item)
		}
	}
}

func (w *Worker) process(ctx context.Context, logger *slog.Logger, item WorkItem) {
	workCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	remote, err := w.remotes.Dial(item.RemoteAddress)
	if err != nil {
		logger.Error("failed to dial sync remote", "remote", item.RemoteAddress, "error", err)

		return
	}

	if err := w.processor.ProcessSyncedRecord(workCtx, item.RemoteAddress, item.RecordID, remote); err != nil {
		logger.Error("failed to process synced record", "record_id", item.RecordID, "remote", item.RemoteAddress, "error", err)

		return
	}

	logger.Debug("synced record", "record_id", item.RecordID, "remote", item.RemoteAddress)
}
