package storage

import (
	"context"

	"github.com/dwnode/dwnd/internal/model"
)

// RecordStoreAPI is the narrow view of RecordStore the dispatcher and
// sync engine depend on.
type RecordStoreAPI interface {
	Put(ctx context.Context, recordID, contextID, entryID, attester, recipient string, msg model.Message) error
	Get(ctx context.Context, recordID string) (StoredRecord, error)
	Query(ctx context.Context, filter model.RecordsFilter) ([]StoredRecord, error)
	PrepareSync(ctx context.Context) ([]model.LocalRecordRef, error)
	FindByContextAndPath(ctx context.Context, contextID, protocolPath string) (attester, recipient string, ok bool, err error)
}

// DataStoreAPI is the narrow view of DataStore the dispatcher depends on.
type DataStoreAPI interface {
	AddRef(ctx context.Context, dataCID string, data []byte) error
	RemoveRef(ctx context.Context, dataCID string) error
	Read(ctx context.Context, dataCID string) ([]byte, error)
}

var (
	_ RecordStoreAPI = (*RecordStore)(nil)
	_ DataStoreAPI   = (*DataStore)(nil)
)
