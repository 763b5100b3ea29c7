// Package storage holds the gorm-backed record store and
// content-addressed data store: the durable state behind the message
// dispatcher.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dwnode/dwnd/internal/model"
)

// ErrRecordNotFound is returned when a record id has no stored state.
var ErrRecordNotFound = errors.New("storage: record not found")

// ErrStale is returned when Put is given a message that loses the
// (message_timestamp, entry_id) tie-break against the record's
// current latest entry; the write is a no-op, not an error to retry.
var ErrStale = errors.New("storage: message is superseded by the record's current state")

// recordRow is the gorm row backing a record's latest known state.
// Only the latest entry is kept; earlier entries are not retained,
// per spec.md's last-writer-wins lifecycle.
type recordRow struct {
	RecordID  string `gorm:"column:record_id;primarykey;not null"`
	ContextID string `gorm:"column:context_id;index"`
	EntryID   string `gorm:"column:entry_id;not null;index"`

	Interface string    `gorm:"column:interface;not null"`
	Method    string    `gorm:"column:method;not null"`
	Tombstone bool      `gorm:"column:tombstone;not null;index"`
	Timestamp time.Time `gorm:"column:message_timestamp;not null;index"`

	Attester        string `gorm:"column:attester;index"`
	Recipient       string `gorm:"column:recipient;index"`
	Schema          string `gorm:"column:schema;index"`
	Protocol        string `gorm:"column:protocol;index"`
	ProtocolVersion string `gorm:"column:protocol_version;index"`
	ProtocolPath    string `gorm:"column:protocol_path;index"`
	DataFormat      string `gorm:"column:data_format;index"`
	DataCID         string `gorm:"column:data_cid"`
	ParentID        string `gorm:"column:parent_id;index"`
	Published       bool   `gorm:"column:published"`

	MessageJSON []byte `gorm:"column:message_json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (recordRow) TableName() string { return "records" }

// StoredRecord is a decoded row: the record's identity plus its
// latest known Message (the RecordsDelete message when Tombstone is
// true).
type StoredRecord struct {
	RecordID  string
	ContextID string
	EntryID   string
	Tombstone bool
	Attester  string
	Recipient string
	Message   model.Message
}

// RecordStore is the gorm-backed implementation of the record
// lifecycle state machine: one row per record id, overwritten in
// place as later entries arrive.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore opens a RecordStore against db, migrating its schema.
func NewRecordStore(db *gorm.DB) (*RecordStore, error) {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("storage: failed to migrate record schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Put applies msg (already authorized and schema-validated by the
// caller) to the record store, keeping it only if it wins the
// (message_timestamp, entry_id) tie-break against the record's
// current state; RecordsDelete dominates a RecordsWrite at an equal
// timestamp. Returns ErrStale (not an error to surface to the caller
// as a failure) when msg loses.
func (s *RecordStore) Put(ctx context.Context, recordID, contextID, entryID, attester, recipient string, msg model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing recordRow

		err := tx.Where("record_id = ?", recordID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row, buildErr := buildRow(recordID, contextID, entryID, attester, recipient, msg)
			if buildErr != nil {
				return buildErr
			}

			return tx.Create(row).Error
		case err != nil:
			return fmt.Errorf("storage: failed to load record %q: %w", recordID, err)
		}

		timestamp, err := model.Timestamp(msg.Descriptor)
		if err != nil {
			return fmt.Errorf("storage: failed to read message timestamp: %w", err)
		}

		if !wins(timestamp, entryID, msg.Descriptor.Method() == model.MethodDelete, existing.Timestamp, existing.EntryID, existing.Tombstone) {
			return ErrStale
		}

		row, err := buildRow(recordID, contextID, entryID, attester, recipient, msg)
		if err != nil {
			return err
		}

		row.CreatedAt = existing.CreatedAt

		return tx.Save(row).Error
	})
}

// wins reports whether the (timestamp, entryID, isDelete) candidate
// dominates the (otherTimestamp, otherEntryID, otherIsDelete)
// incumbent under spec.md's tie-break: later message_timestamp wins;
// on equal timestamps, a delete dominates a write; otherwise the
// lexicographically greater entry id wins.
func wins(timestamp time.Time, entryID string, isDelete bool, otherTimestamp time.Time, otherEntryID string, otherIsDelete bool) bool {
	if !timestamp.Equal(otherTimestamp) {
		return timestamp.After(otherTimestamp)
	}

	if isDelete != otherIsDelete {
		return isDelete
	}

	return entryID > otherEntryID
}

func buildRow(recordID, contextID, entryID, attester, recipient string, msg model.Message) (*recordRow, error) {
	timestamp, err := model.Timestamp(msg.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read message timestamp: %w", err)
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to encode message: %w", err)
	}

	row := &recordRow{
		RecordID:    recordID,
		ContextID:   contextID,
		EntryID:     entryID,
		Attester:    attester,
		Recipient:   recipient,
		Interface:   msg.Descriptor.Interface(),
		Method:      msg.Descriptor.Method(),
		Tombstone:   msg.Descriptor.Method() == model.MethodDelete,
		Timestamp:   timestamp,
		MessageJSON: encoded,
	}

	if write, ok := msg.Descriptor.(model.RecordsWrite); ok {
		row.Schema = write.Schema
		row.Protocol = write.Protocol
		row.ProtocolVersion = write.ProtocolVersion
		row.ProtocolPath = write.ProtocolPath
		row.DataFormat = write.DataFormat
		row.DataCID = write.DataCID
		row.ParentID = write.ParentID
		row.Published = write.IsPublished()
	}

	return row, nil
}

// Get retrieves the stored record for recordID.
func (s *RecordStore) Get(ctx context.Context, recordID string) (StoredRecord, error) {
	var row recordRow

	err := s.db.WithContext(ctx).Where("record_id = ?", recordID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StoredRecord{}, ErrRecordNotFound
	}

	if err != nil {
		return StoredRecord{}, fmt.Errorf("storage: failed to load record %q: %w", recordID, err)
	}

	return decodeRow(row)
}

func decodeRow(row recordRow) (StoredRecord, error) {
	var msg model.Message

	if len(row.MessageJSON) > 0 {
		if err := json.Unmarshal(row.MessageJSON, &msg); err != nil {
			return StoredRecord{}, fmt.Errorf("storage: failed to decode stored message for %q: %w", row.RecordID, err)
		}
	}

	return StoredRecord{
		RecordID:  row.RecordID,
		ContextID: row.ContextID,
		EntryID:   row.EntryID,
		Tombstone: row.Tombstone,
		Attester:  row.Attester,
		Recipient: row.Recipient,
		Message:   msg,
	}, nil
}

// Query returns every non-deleted record matching filter, AND-ing
// together whichever of its fields are non-zero.
func (s *RecordStore) Query(ctx context.Context, filter model.RecordsFilter) ([]StoredRecord, error) {
	query := s.db.WithContext(ctx).Model(&recordRow{}).Where("tombstone = ?", false)

	if filter.Attester != "" {
		query = query.Where("attester = ?", filter.Attester)
	}

	if filter.Recipient != "" {
		query = query.Where("recipient = ?", filter.Recipient)
	}

	if filter.Schema != "" {
		query = query.Where("schema = ?", filter.Schema)
	}

	if filter.RecordID != "" {
		query = query.Where("record_id = ?", filter.RecordID)
	}

	if filter.Protocol != "" {
		query = query.Where("protocol = ?", filter.Protocol)
	}

	if filter.ProtocolVersion != "" {
		query = query.Where("protocol_version = ?", filter.ProtocolVersion)
	}

	if filter.ProtocolPath != "" {
		query = query.Where("protocol_path = ?", filter.ProtocolPath)
	}

	if filter.DataFormat != "" {
		query = query.Where("data_format = ?", filter.DataFormat)
	}

	if filter.DateCreated != nil {
		query = query.Where("message_timestamp BETWEEN ? AND ?", filter.DateCreated.From, filter.DateCreated.To)
	}

	switch filter.DateSort {
	case model.DateSortAscending:
		query = query.Order("message_timestamp ASC")
	default:
		query = query.Order("message_timestamp DESC")
	}

	var rows []recordRow

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to query records: %w", err)
	}

	results := make([]StoredRecord, 0, len(rows))

	for _, row := range rows {
		decoded, err := decodeRow(row)
		if err != nil {
			return nil, err
		}

		results = append(results, decoded)
	}

	return results, nil
}

// PrepareSync returns the record_id/latest entry_id manifest a
// RecordsSync request advertises to a remote peer, including
// tombstones (a peer must learn about deletes too).
func (s *RecordStore) PrepareSync(ctx context.Context) ([]model.LocalRecordRef, error) {
	var rows []recordRow

	if err := s.db.WithContext(ctx).Select("record_id", "entry_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list records for sync: %w", err)
	}

	refs := make([]model.LocalRecordRef, len(rows))
	for i, row := range rows {
		refs[i] = model.LocalRecordRef{RecordID: row.RecordID, LatestEntryID: row.EntryID}
	}

	return refs, nil
}

// FindByContextAndPath locates the non-deleted record under contextID
// whose protocol_path equals protocolPath, returning its attester/
// recipient for the protocol engine's ancestor ("of") resolution.
func (s *RecordStore) FindByContextAndPath(ctx context.Context, contextID, protocolPath string) (attester, recipient string, ok bool, err error) {
	var row recordRow

	dbErr := s.db.WithContext(ctx).
		Where("context_id = ? AND protocol_path = ? AND tombstone = ?", contextID, protocolPath, false).
		First(&row).Error

	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return "", "", false, nil
	}

	if dbErr != nil {
		return "", "", false, fmt.Errorf("storage: failed to find ancestor %s/%s: %w", contextID, protocolPath, dbErr)
	}

	return row.Attester, row.Recipient, true, nil
}
