package model

import (
	"fmt"
	"time"
)

// Descriptor is the tagged union of operation descriptors a message
// carries. Concrete variants implement it; the interface/method pair
// is the externally-tagged wire discriminator (spec.md §6).
type Descriptor interface {
	Interface() string
	Method() string

	descriptor()
}

const (
	InterfaceRecords   = "Records"
	InterfaceProtocols = "Protocols"

	MethodRead      = "Read"
	MethodQuery     = "Query"
	MethodWrite     = "Write"
	MethodDelete    = "Delete"
	MethodSync      = "Sync"
	MethodConfigure = "Configure"
)

// ProtocolsConfigure declares (or re-declares, under a distinct
// version) a protocol definition.
type ProtocolsConfigure struct {
	ProtocolVersion string              `cbor:"protocolVersion" json:"protocolVersion"`
	Definition      *ProtocolDefinition `cbor:"definition,omitempty" json:"definition,omitempty"`
}

func (ProtocolsConfigure) Interface() string { return InterfaceProtocols }
func (ProtocolsConfigure) Method() string    { return MethodConfigure }
func (ProtocolsConfigure) descriptor()       {}

// ProtocolsQuery looks up configured protocol definitions.
type ProtocolsQuery struct {
	Filter ProtocolsFilter `cbor:"filter" json:"filter"`
}

func (ProtocolsQuery) Interface() string { return InterfaceProtocols }
func (ProtocolsQuery) Method() string    { return MethodQuery }
func (ProtocolsQuery) descriptor()       {}

// ProtocolsFilter narrows a ProtocolsQuery.
type ProtocolsFilter struct {
	Protocol string   `cbor:"protocol,omitempty" json:"protocol,omitempty"`
	Versions []string `cbor:"versions,omitempty" json:"versions,omitempty"`
}

// RecordsWrite creates or updates a record.
type RecordsWrite struct {
	MessageTimestamp time.Time `cbor:"messageTimestamp" json:"messageTimestamp"`

	DataCID         string `cbor:"dataCid,omitempty"         json:"dataCid,omitempty"`
	DataFormat      string `cbor:"dataFormat,omitempty"      json:"dataFormat,omitempty"`
	Schema          string `cbor:"schema,omitempty"          json:"schema,omitempty"`
	Protocol        string `cbor:"protocol,omitempty"        json:"protocol,omitempty"`
	ProtocolVersion string `cbor:"protocolVersion,omitempty" json:"protocolVersion,omitempty"`
	ProtocolPath    string `cbor:"protocolPath,omitempty"    json:"protocolPath,omitempty"`
	ParentID        string `cbor:"parentId,omitempty"        json:"parentId,omitempty"`
	Published       *bool  `cbor:"published,omitempty"       json:"published,omitempty"`
}

func (RecordsWrite) Interface() string { return InterfaceRecords }
func (RecordsWrite) Method() string    { return MethodWrite }
func (RecordsWrite) descriptor()       {}

// IsPublished reports the effective published flag (default false).
func (d RecordsWrite) IsPublished() bool {
	return d.Published != nil && *d.Published
}

// RecordsRead fetches a single record by id.
type RecordsRead struct {
	MessageTimestamp time.Time `cbor:"messageTimestamp" json:"messageTimestamp"`
	RecordID         string    `cbor:"recordId"         json:"recordId"`
}

func (RecordsRead) Interface() string { return InterfaceRecords }
func (RecordsRead) Method() string    { return MethodRead }
func (RecordsRead) descriptor()       {}

// RecordsQuery searches records by filter.
type RecordsQuery struct {
	MessageTimestamp time.Time      `cbor:"messageTimestamp"   json:"messageTimestamp"`
	Filter           *RecordsFilter `cbor:"filter,omitempty"   json:"filter,omitempty"`
}

func (RecordsQuery) Interface() string { return InterfaceRecords }
func (RecordsQuery) Method() string    { return MethodQuery }
func (RecordsQuery) descriptor()       {}

// FilterDateSort orders RecordsQuery results by message timestamp.
type FilterDateSort string

const (
	DateSortAscending  FilterDateSort = "ascending"
	DateSortDescending FilterDateSort = "descending"
)

// DateRange bounds a filter's date_created comparison.
type DateRange struct {
	From time.Time `cbor:"from" json:"from"`
	To   time.Time `cbor:"to"   json:"to"`
}

// RecordsFilter is the AND-of-present-fields predicate described in spec.md §4.3.
type RecordsFilter struct {
	Attester        string         `cbor:"attester,omitempty"        json:"attester,omitempty"`
	Recipient       string         `cbor:"recipient,omitempty"       json:"recipient,omitempty"`
	Schema          string         `cbor:"schema,omitempty"          json:"schema,omitempty"`
	RecordID        string         `cbor:"recordId,omitempty"        json:"recordId,omitempty"`
	Protocol        string         `cbor:"protocol,omitempty"        json:"protocol,omitempty"`
	ProtocolVersion string         `cbor:"protocolVersion,omitempty" json:"protocolVersion,omitempty"`
	ProtocolPath    string         `cbor:"protocolPath,omitempty"    json:"protocolPath,omitempty"`
	DataFormat      string         `cbor:"dataFormat,omitempty"      json:"dataFormat,omitempty"`
	DateCreated     *DateRange     `cbor:"dateCreated,omitempty"     json:"dateCreated,omitempty"`
	DateSort        FilterDateSort `cbor:"dateSort,omitempty"        json:"dateSort,omitempty"`
}

// RecordsDelete marks a record as deleted, dominating all earlier writes.
type RecordsDelete struct {
	MessageTimestamp time.Time `cbor:"messageTimestamp" json:"messageTimestamp"`
	RecordID         string    `cbor:"recordId"         json:"recordId"`
}

func (RecordsDelete) Interface() string { return InterfaceRecords }
func (RecordsDelete) Method() string    { return MethodDelete }
func (RecordsDelete) descriptor()       {}

// LocalRecordRef is one row of a sync request's manifest.
type LocalRecordRef struct {
	RecordID      string `cbor:"recordId"      json:"recordId"`
	LatestEntryID string `cbor:"latestEntryId" json:"latestEntryId"`
}

// RecordsSync requests reconciliation against the responder's record set.
type RecordsSync struct {
	MessageTimestamp time.Time        `cbor:"messageTimestamp" json:"messageTimestamp"`
	LocalRecords     []LocalRecordRef `cbor:"localRecords"     json:"localRecords"`
}

func (RecordsSync) Interface() string { return InterfaceRecords }
func (RecordsSync) Method() string    { return MethodSync }
func (RecordsSync) descriptor()       {}

// Timestamp returns the message_timestamp common to every descriptor variant.
func Timestamp(d Descriptor) (time.Time, error) {
	switch v := d.(type) {
	case RecordsWrite:
		return v.MessageTimestamp, nil
	case RecordsRead:
		return v.MessageTimestamp, nil
	case RecordsQuery:
		return v.MessageTimestamp, nil
	case RecordsDelete:
		return v.MessageTimestamp, nil
	case RecordsSync:
		return v.MessageTimestamp, nil
	default:
		return time.Time{}, fmt.Errorf("model: descriptor %s.%s has no message_timestamp", d.Interface(), d.Method())
	}
}
