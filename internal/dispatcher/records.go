package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
	"github.com/dwnode/dwnd/internal/storage"
)

func (d *Dispatcher) handleRecordsWrite(ctx context.Context, ownerDID, requesterDID string, msg model.Message, write model.RecordsWrite, ignoreParentCheck bool) (*RecordsWriteReply, error) {
	if msg.Authorization == nil {
		return nil, newError(KindUnauthorized, "records.write", errors.New("RecordsWrite requires authorization"))
	}

	if err := d.requireGate(subjectFor(ownerDID, requesterDID), model.InterfaceRecords, model.MethodWrite); err != nil {
		return nil, err
	}

	entryID, err := codec.EntryID(write)
	if err != nil {
		return nil, newError(KindBackendError, "records.write", fmt.Errorf("failed to compute entry_id: %w", err))
	}

	recordID := msg.RecordID

	var (
		existing      storage.StoredRecord
		existingFound bool
	)

	if recordID != "" {
		existing, err = d.records.Get(ctx, recordID)

		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			existingFound = false
		case err != nil:
			return nil, newError(KindBackendError, "records.write", err)
		default:
			existingFound = true
		}
	}

	switch {
	case !existingFound:
		if recordID == "" {
			recordID = entryID
		}

		if recordID != entryID {
			return nil, newError(KindInvalidEnvelope, "records.write",
				fmt.Errorf("initial write record_id %q does not match entry_id(descriptor) %q", recordID, entryID))
		}
	case !ignoreParentCheck && write.ParentID != existing.EntryID:
		return nil, newError(KindInvalidEnvelope, "records.write",
			fmt.Errorf("parent_id %q does not name the record's current entry %q", write.ParentID, existing.EntryID))
	}

	if write.Schema != "" && len(msg.Data) > 0 {
		if err := d.validator.Validate(ctx, write.Schema, msg.Data); err != nil {
			return nil, err
		}
	}

	if err := d.authorizeWrite(ctx, ownerDID, requesterDID, msg.ContextID, write.Protocol, write.ProtocolVersion, write.ProtocolPath, write.DataFormat, write.IsPublished()); err != nil {
		return nil, err
	}

	if len(msg.Data) > 0 {
		if err := d.data.AddRef(ctx, write.DataCID, msg.Data); err != nil {
			return nil, newError(KindBackendError, "records.write", err)
		}
	}

	if err := d.records.Put(ctx, recordID, msg.ContextID, entryID, requesterDID, ownerDID, msg); err != nil {
		if errors.Is(err, storage.ErrStale) {
			return &RecordsWriteReply{RecordID: recordID, EntryID: existing.EntryID}, nil
		}

		return nil, newError(KindBackendError, "records.write", err)
	}

	if existingFound {
		if oldWrite, ok := existing.Message.Descriptor.(model.RecordsWrite); ok && oldWrite.DataCID != "" && oldWrite.DataCID != write.DataCID {
			if err := d.data.RemoveRef(ctx, oldWrite.DataCID); err != nil && !errors.Is(err, storage.ErrDataNotFound) {
				return nil, newError(KindBackendError, "records.write", err)
			}
		}
	}

	d.enqueueToPeers(recordID)

	return &RecordsWriteReply{RecordID: recordID, EntryID: entryID}, nil
}

func (d *Dispatcher) handleRecordsDelete(ctx context.Context, ownerDID, requesterDID string, msg model.Message, del model.RecordsDelete) (*RecordsWriteReply, error) {
	if msg.Authorization == nil {
		return nil, newError(KindUnauthorized, "records.delete", errors.New("RecordsDelete requires authorization"))
	}

	if err := d.requireGate(subjectFor(ownerDID, requesterDID), model.InterfaceRecords, model.MethodDelete); err != nil {
		return nil, err
	}

	entryID, err := codec.EntryID(del)
	if err != nil {
		return nil, newError(KindBackendError, "records.delete", fmt.Errorf("failed to compute entry_id: %w", err))
	}

	existing, err := d.records.Get(ctx, del.RecordID)

	var (
		protocolName, protocolVersion, protocolPath, dataFormat string
		published                                               bool
	)

	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		// deleting a record that never existed is an idempotent no-op.
	case err != nil:
		return nil, newError(KindBackendError, "records.delete", err)
	default:
		if write, ok := existing.Message.Descriptor.(model.RecordsWrite); ok {
			protocolName, protocolVersion, protocolPath = write.Protocol, write.ProtocolVersion, write.ProtocolPath
			dataFormat, published = write.DataFormat, write.IsPublished()
		}
	}

	if err := d.authorizeWrite(ctx, ownerDID, requesterDID, msg.ContextID, protocolName, protocolVersion, protocolPath, dataFormat, published); err != nil {
		return nil, err
	}

	if err := d.records.Put(ctx, del.RecordID, msg.ContextID, entryID, requesterDID, ownerDID, msg); err != nil {
		if errors.Is(err, storage.ErrStale) {
			return &RecordsWriteReply{RecordID: del.RecordID, EntryID: existing.EntryID}, nil
		}

		return nil, newError(KindBackendError, "records.delete", err)
	}

	if write, ok := existing.Message.Descriptor.(model.RecordsWrite); ok && write.DataCID != "" {
		if err := d.data.RemoveRef(ctx, write.DataCID); err != nil && !errors.Is(err, storage.ErrDataNotFound) {
			return nil, newError(KindBackendError, "records.delete", err)
		}
	}

	d.enqueueToPeers(del.RecordID)

	return &RecordsWriteReply{RecordID: del.RecordID, EntryID: entryID}, nil
}

// authorizeWrite applies the gate-agnostic per-record write rule: the
// owner may always write; anyone else needs a protocol-tagged record
// whose action rules grant them write access.
func (d *Dispatcher) authorizeWrite(ctx context.Context, ownerDID, requesterDID, contextID, protocolName, protocolVersion, protocolPath, dataFormat string, published bool) error {
	if requesterDID == ownerDID {
		return nil
	}

	if protocolName == "" {
		return newError(KindUnauthorized, "authorize_write", fmt.Errorf("only the owner may write an unprotocoled record"))
	}

	def, ok := d.registry.Lookup(protocolName, protocolVersion)
	if !ok {
		return newError(KindProtocolViolation, "authorize_write", fmt.Errorf("%w: %s@%s", protocol.ErrNotConfigured, protocolName, protocolVersion))
	}

	if err := protocol.ValidateStructure(def, protocol.WriteShape{
		Protocol: protocolName, ProtocolVersion: protocolVersion, ProtocolPath: protocolPath,
		DataFormat: dataFormat, Published: published,
	}); err != nil {
		return newError(KindProtocolViolation, "authorize_write", err)
	}

	lookup := recordAncestorLookup{store: d.records, ownerDID: ownerDID}

	allowed, err := protocol.Authorize(ctx, d.registry, lookup, protocol.Request{
		Protocol: protocolName, ProtocolVersion: protocolVersion, ProtocolPath: protocolPath,
		ContextID: contextID, Can: model.CanWrite, RequesterDID: requesterDID,
		Attester: requesterDID, Recipient: ownerDID,
	})
	if err != nil {
		return newError(KindBackendError, "authorize_write", err)
	}

	if !allowed {
		return newError(KindUnauthorized, "authorize_write", fmt.Errorf("protocol rule denies write to %s", protocolPath))
	}

	return nil
}

func (d *Dispatcher) handleRecordsRead(ctx context.Context, ownerDID, requesterDID string, read model.RecordsRead) (*RecordsReadReply, error) {
	if err := d.requireGate(subjectFor(ownerDID, requesterDID), model.InterfaceRecords, model.MethodRead); err != nil {
		return nil, err
	}

	stored, err := d.records.Get(ctx, read.RecordID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return &RecordsReadReply{}, nil
	}

	if err != nil {
		return nil, newError(KindBackendError, "records.read", err)
	}

	if stored.Tombstone {
		if requesterDID != ownerDID {
			return &RecordsReadReply{}, nil
		}

		return &RecordsReadReply{Entry: &stored}, nil
	}

	if !d.canSeeRecord(ctx, ownerDID, requesterDID, stored) {
		return &RecordsReadReply{}, nil
	}

	return &RecordsReadReply{Entry: &stored}, nil
}

func (d *Dispatcher) handleRecordsQuery(ctx context.Context, ownerDID, requesterDID string, query model.RecordsQuery) (*RecordsQueryReply, error) {
	if err := d.requireGate(subjectFor(ownerDID, requesterDID), model.InterfaceRecords, model.MethodQuery); err != nil {
		return nil, err
	}

	filter := model.RecordsFilter{}
	if query.Filter != nil {
		filter = *query.Filter
	}

	results, err := d.records.Query(ctx, filter)
	if err != nil {
		return nil, newError(KindBackendError, "records.query", err)
	}

	visible := make([]storage.StoredRecord, 0, len(results))

	for _, record := range results {
		if d.canSeeRecord(ctx, ownerDID, requesterDID, record) {
			visible = append(visible, record)
		}
	}

	return &RecordsQueryReply{Entries: visible}, nil
}

// canSeeRecord gates visibility of a record's content: the owner sees
// everything; anyone else sees a record only if it is published or a
// protocol read rule grants them access.
func (d *Dispatcher) canSeeRecord(ctx context.Context, ownerDID, requesterDID string, record storage.StoredRecord) bool {
	if requesterDID == ownerDID {
		return true
	}

	write, ok := record.Message.Descriptor.(model.RecordsWrite)
	if !ok {
		return false
	}

	if write.IsPublished() {
		return true
	}

	if write.Protocol == "" {
		return false
	}

	lookup := recordAncestorLookup{store: d.records, ownerDID: ownerDID}

	allowed, err := protocol.Authorize(ctx, d.registry, lookup, protocol.Request{
		Protocol: write.Protocol, ProtocolVersion: write.ProtocolVersion, ProtocolPath: write.ProtocolPath,
		ContextID: record.ContextID, Can: model.CanRead, RequesterDID: requesterDID,
		Attester: record.Attester, Recipient: record.Recipient,
	})

	return err == nil && allowed
}
