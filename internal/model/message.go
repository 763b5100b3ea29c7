package model

import (
	"encoding/json"
	"fmt"
)

// JWSSignature is one entry of a SignatureEnvelope's signatures array,
// a detached-payload JWS signature: base64url(protected header) and
// base64url(signature bytes).
type JWSSignature struct {
	Protected string `cbor:"protected" json:"protected"`
	Signature string `cbor:"signature" json:"signature"`
}

// SignatureEnvelope is a detached JWS: Payload is the base64url-encoded
// value that was signed (never the descriptor itself, see
// internal/signing), Signatures is one entry per signer.
type SignatureEnvelope struct {
	Payload    string         `cbor:"payload"    json:"payload"`
	Signatures []JWSSignature `cbor:"signatures" json:"signatures"`
}

// Message is the envelope every DWN request and response carries: a
// descriptor naming the operation, optional inline data, and the
// attestation/authorization signature envelopes that bind it to a DID.
type Message struct {
	RecordID      string             `json:"recordId,omitempty"`
	ContextID     string             `json:"contextId,omitempty"`
	Descriptor    Descriptor         `json:"descriptor"`
	Data          []byte             `json:"data,omitempty"`
	Attestation   *SignatureEnvelope `json:"attestation,omitempty"`
	Authorization *SignatureEnvelope `json:"authorization,omitempty"`
}

// discriminator is the pair of fields every wire descriptor object
// carries alongside its variant-specific fields.
type discriminator struct {
	Interface string `json:"interface"`
	Method    string `json:"method"`
}

// MarshalJSON flattens the descriptor's interface/method discriminator
// into the same JSON object as its own fields, rather than nesting a
// separate tag — matching the wire shape spec.md §6 shows.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Descriptor == nil {
		return nil, fmt.Errorf("model: message has no descriptor")
	}

	descFields, err := json.Marshal(m.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("model: failed to marshal descriptor: %w", err)
	}

	var descMap map[string]json.RawMessage

	if err := json.Unmarshal(descFields, &descMap); err != nil {
		return nil, fmt.Errorf("model: descriptor did not marshal to an object: %w", err)
	}

	ifaceJSON, _ := json.Marshal(m.Descriptor.Interface())
	methodJSON, _ := json.Marshal(m.Descriptor.Method())
	descMap["interface"] = ifaceJSON
	descMap["method"] = methodJSON

	type alias struct {
		RecordID      string                     `json:"recordId,omitempty"`
		ContextID     string                     `json:"contextId,omitempty"`
		Descriptor    map[string]json.RawMessage `json:"descriptor"`
		Data          []byte                     `json:"data,omitempty"`
		Attestation   *SignatureEnvelope         `json:"attestation,omitempty"`
		Authorization *SignatureEnvelope         `json:"authorization,omitempty"`
	}

	out, err := json.Marshal(alias{
		RecordID:      m.RecordID,
		ContextID:     m.ContextID,
		Descriptor:    descMap,
		Data:          m.Data,
		Attestation:   m.Attestation,
		Authorization: m.Authorization,
	})
	if err != nil {
		return nil, fmt.Errorf("model: failed to marshal message: %w", err)
	}

	return out, nil
}

// UnmarshalJSON reads the interface/method discriminator out of the
// descriptor object to pick a concrete Descriptor type, then decodes
// the full descriptor object into it.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		RecordID      string             `json:"recordId,omitempty"`
		ContextID     string             `json:"contextId,omitempty"`
		Descriptor    json.RawMessage    `json:"descriptor"`
		Data          []byte             `json:"data,omitempty"`
		Attestation   *SignatureEnvelope `json:"attestation,omitempty"`
		Authorization *SignatureEnvelope `json:"authorization,omitempty"`
	}

	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("model: failed to unmarshal message envelope: %w", err)
	}

	var tag discriminator

	if err := json.Unmarshal(a.Descriptor, &tag); err != nil {
		return fmt.Errorf("model: failed to read descriptor discriminator: %w", err)
	}

	descriptor, err := decodeDescriptor(tag, a.Descriptor)
	if err != nil {
		return err
	}

	m.RecordID = a.RecordID
	m.ContextID = a.ContextID
	m.Descriptor = descriptor
	m.Data = a.Data
	m.Attestation = a.Attestation
	m.Authorization = a.Authorization

	return nil
}

func decodeDescriptor(tag discriminator, raw json.RawMessage) (Descriptor, error) {
	switch {
	case tag.Interface == InterfaceProtocols && tag.Method == MethodConfigure:
		var d ProtocolsConfigure
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceProtocols && tag.Method == MethodQuery:
		var d ProtocolsQuery
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceRecords && tag.Method == MethodWrite:
		var d RecordsWrite
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceRecords && tag.Method == MethodRead:
		var d RecordsRead
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceRecords && tag.Method == MethodQuery:
		var d RecordsQuery
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceRecords && tag.Method == MethodDelete:
		var d RecordsDelete
		return d, unmarshalInto(raw, &d)
	case tag.Interface == InterfaceRecords && tag.Method == MethodSync:
		var d RecordsSync
		return d, unmarshalInto(raw, &d)
	default:
		return nil, fmt.Errorf("model: unrecognized descriptor %s.%s", tag.Interface, tag.Method)
	}
}

func unmarshalInto[T any](raw json.RawMessage, out *T) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("model: failed to unmarshal descriptor body: %w", err)
	}

	return nil
}
