package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwnode/dwnd/internal/logging"
	"github.com/dwnode/dwnd/internal/model"
)

// LocalManifest supplies the local record_id/latest-entry_id pairs a
// Scheduler reconciles against a remote.
type LocalManifest interface {
	PrepareSync(ctx context.Context) ([]model.LocalRecordRef, error)
}

// Scheduler periodically reconciles the local manifest against a set
// of configured remotes, enqueueing a WorkItem for every record the
// remote has and the local store lacks or holds at a different entry
// (remote-only and conflicting records). Local-only records are not
// enqueued: nothing is pushed to the remote.
type Scheduler struct {
	local    LocalManifest
	remotes  RemoteDialer
	queue    *Queue
	interval time.Duration
	peers    []string
}

// NewScheduler builds a Scheduler that reconciles against peers every interval.
func NewScheduler(local LocalManifest, remotes RemoteDialer, queue *Queue, interval time.Duration, peers []string) *Scheduler {
	return &Scheduler{local: local, remotes: remotes, queue: queue, interval: interval, peers: peers}
}

// Run ticks every s.interval until ctx is done or stopCh is closed.
func (s *Scheduler) Run(ctx context.Context, stopCh <-chan struct{}) {
	logger := logging.FromContext(ctx).With("component", "sync.scheduler")
	logger.Info("sync scheduler started", "interval", s.interval, "peers", len(s.peers))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync scheduler stopping: context cancelled")

			return
		case <-stopCh:
			logger.Info("sync scheduler stopping: stop signal")

			return
		case <-ticker.C:
			s.tick(ctx, logger)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, logger *slog.Logger) {
	local, err := s.local.PrepareSync(ctx)
	if err != nil {
		logger.Error("failed to prepare local sync manifest", "error", err)

		return
	}

	for _, peer := range s.peers {
		remote, err := s.remotes.Dial(peer)
		if err != nil {
			logger.Error("failed to dial sync peer", "peer", peer, "error", err)

			continue
		}

		remoteManifest, err := remote.Manifest(ctx)
		if err != nil {
			logger.Error("failed to fetch remote manifest", "peer", peer, "error", err)

			continue
		}

		diff := Reconcile(local, remoteManifest)

		for _, recordID := range append(diff.RemoteOnly, diff.Conflict...) {
			if err := s.queue.Enqueue(WorkItem{RemoteAddress: peer, RecordID: recordID}); err != nil {
				logger.Warn("sync queue full, dropping work item", "peer", peer, "record_id", recordID)
			}
		}
	}
}
