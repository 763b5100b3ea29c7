package dispatcher

import (
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/storage"
)

// RecordsQueryReply answers a RecordsQuery.
type RecordsQueryReply struct {
	Entries []storage.StoredRecord
}

// RecordsReadReply answers a RecordsRead. Entry is nil when the
// record is absent, or present but unpublished and the caller was not
// authorized to see it (spec.md scenario 6).
type RecordsReadReply struct {
	Entry *storage.StoredRecord
}

// RecordsWriteReply answers a RecordsWrite or RecordsDelete.
type RecordsWriteReply struct {
	RecordID string
	EntryID  string
}

// ProtocolsQueryReply answers a ProtocolsQuery.
type ProtocolsQueryReply struct {
	Definitions []model.ProtocolDefinition
}

// ProtocolsConfigureReply answers a ProtocolsConfigure.
type ProtocolsConfigureReply struct {
	Protocol        string
	ProtocolVersion string
}

// RecordsSyncReply answers a RecordsSync request (spec.md §4.7).
type RecordsSyncReply struct {
	Conflict   []model.Message
	LocalOnly  []string
	RemoteOnly []model.Message
}
