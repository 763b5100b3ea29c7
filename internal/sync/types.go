// Package sync implements the sync protocol: a bounded outgoing work
// queue drained by a worker pool, and the three-way reconciliation
// that decides what each side of a sync needs from the other.
package sync

import (
	"context"

	"github.com/dwnode/dwnd/internal/model"
)

// RemoteClient is the transport-agnostic view of a remote DWN peer a
// sync worker pulls from. Push is part of the interface, but Worker
// never calls it.
type RemoteClient interface {
	// Manifest returns the remote's record_id/latest entry_id pairs.
	Manifest(ctx context.Context) ([]model.LocalRecordRef, error)
	// Fetch retrieves the remote's current message for recordID.
	Fetch(ctx context.Context, recordID string) (model.Message, error)
	// Push sends a local message to the remote.
	Push(ctx context.Context, recordID string, msg model.Message) error
}
