package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/signing"
	"github.com/dwnode/dwnd/internal/storage"
	wnsync "github.com/dwnode/dwnd/internal/sync"
)

// handleRecordsSync implements the sync responder algorithm of
// spec.md §4.7: it diffs the initiator's manifest against the local
// store and replies with which records the initiator lacks, which the
// responder lacks, and which disagree.
func (d *Dispatcher) handleRecordsSync(ctx context.Context, ownerDID, requesterDID string, req model.RecordsSync) (*RecordsSyncReply, error) {
	if err := d.requireGate(subjectFor(ownerDID, requesterDID), model.InterfaceRecords, model.MethodSync); err != nil {
		return nil, err
	}

	localRefs, err := d.records.PrepareSync(ctx)
	if err != nil {
		return nil, newError(KindBackendError, "records.sync", err)
	}

	remaining := make(map[string]string, len(localRefs))
	for _, ref := range localRefs {
		remaining[ref.RecordID] = ref.LatestEntryID
	}

	reply := &RecordsSyncReply{}

	for _, r := range req.LocalRecords {
		delete(remaining, r.RecordID)

		stored, err := d.records.Get(ctx, r.RecordID)

		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			reply.LocalOnly = append(reply.LocalOnly, r.RecordID)
		case err != nil:
			return nil, newError(KindBackendError, "records.sync", err)
		case stored.EntryID != r.LatestEntryID:
			reply.Conflict = append(reply.Conflict, stored.Message)
		}
	}

	for recordID := range remaining {
		stored, err := d.records.Get(ctx, recordID)
		if err != nil {
			return nil, newError(KindBackendError, "records.sync", err)
		}

		reply.RemoteOnly = append(reply.RemoteOnly, stored.Message)
	}

	return reply, nil
}

// ProcessSyncedRecord implements sync.MessageProcessor: it fetches a
// record named by a remote-only/conflicting sync diff and runs it
// through this dispatcher's own Process, bypassing the parent-id
// continuity check per spec.md §4.7 ("ignoring parent-id continuity
// checks if the responder supplied it").
func (d *Dispatcher) ProcessSyncedRecord(ctx context.Context, remoteAddress, recordID string, remote wnsync.RemoteClient) error {
	msg, err := remote.Fetch(ctx, recordID)
	if err != nil {
		return fmt.Errorf("dispatcher: failed to fetch synced record %q from %q: %w", recordID, remoteAddress, err)
	}

	ownerDID, err := d.ownerDIDForSync(msg)
	if err != nil {
		return err
	}

	if _, err := d.process(ctx, ownerDID, msg, true); err != nil {
		return fmt.Errorf("dispatcher: failed to apply synced record %q: %w", recordID, err)
	}

	return nil
}

// ownerDIDForSync recovers the owning identity a synced message should
// be applied under: the authorization signer, since sync replicas
// always act on behalf of the identity that authored the record.
func (d *Dispatcher) ownerDIDForSync(msg model.Message) (string, error) {
	if msg.Authorization == nil {
		return "", newError(KindUnauthorized, "records.sync", fmt.Errorf("synced record %q carries no authorization", msg.RecordID))
	}

	did, err := signing.SignerDID(msg.Authorization)
	if err != nil {
		return "", newError(KindInvalidSignature, "records.sync", err)
	}

	return string(did), nil
}

var _ wnsync.MessageProcessor = (*Dispatcher)(nil)
