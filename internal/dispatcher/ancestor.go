package dispatcher

import (
	"context"

	"github.com/dwnode/dwnd/internal/storage"
)

// recordAncestorLookup adapts a RecordStoreAPI into a
// protocol.AncestorLookup: every record's "recipient" is the DID that
// owns the DWN instance (spec.md §4.5 item 6's "identity that owns the
// DWN" for a root `of`). See DESIGN.md for this deliberate
// simplification of the recipient concept.
type recordAncestorLookup struct {
	store    storage.RecordStoreAPI
	ownerDID string
}

func (l recordAncestorLookup) FindByContextAndPath(ctx context.Context, contextID, protocolPath string) (attester, recipient string, ok bool, err error) {
	attester, _, found, err := l.store.FindByContextAndPath(ctx, contextID, protocolPath)
	if err != nil || !found {
		return "", "", found, err
	}

	return attester, l.ownerDID, true, nil
}
