// Package dispatcher is the single entry point that validates,
// authorizes, routes, and persists one incoming message: it wires
// together the message model, DID resolution, signature verification,
// the record/data stores, the protocol engine, and the sync protocol.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/logging"
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
	"github.com/dwnode/dwnd/internal/signing"
	"github.com/dwnode/dwnd/internal/storage"
	"github.com/dwnode/dwnd/internal/sync"
)

// Dispatcher is the message-processing engine of one DWN instance.
type Dispatcher struct {
	records   storage.RecordStoreAPI
	data      storage.DataStoreAPI
	resolver  didresolve.Resolver
	registry  *protocol.Registry
	gate      *protocol.Gate
	validator SchemaValidator
	queue     *sync.Queue
	peers     []string
	locks     *keyedMutex
	chunkOpts codec.ChunkOptions
}

// New builds a Dispatcher. queue and peers may be nil/empty when this
// instance does not propagate writes to remotes.
func New(
	records storage.RecordStoreAPI,
	data storage.DataStoreAPI,
	resolver didresolve.Resolver,
	registry *protocol.Registry,
	gate *protocol.Gate,
	validator SchemaValidator,
	queue *sync.Queue,
	peers []string,
	chunkOpts codec.ChunkOptions,
) *Dispatcher {
	return &Dispatcher{
		records:   records,
		data:      data,
		resolver:  resolver,
		registry:  registry,
		gate:      gate,
		validator: validator,
		queue:     queue,
		peers:     peers,
		locks:     newKeyedMutex(),
		chunkOpts: chunkOpts,
	}
}

// Process validates, authorizes, and applies msg against the DWN
// instance addressed by ownerDID, per spec.md §4.6's pseudoflow.
// Ordering for a single ownerDID is total across concurrent Process calls.
func (d *Dispatcher) Process(ctx context.Context, ownerDID string, msg model.Message) (any, error) {
	return d.process(ctx, ownerDID, msg, false)
}

func (d *Dispatcher) process(ctx context.Context, ownerDID string, msg model.Message, ignoreParentCheck bool) (any, error) {
	unlock := d.locks.Lock(ownerDID)
	defer unlock()

	logger := logging.FromContext(ctx).With("component", "dispatcher", "owner", ownerDID)

	if msg.Descriptor == nil {
		return nil, newError(KindInvalidEnvelope, "process_message", fmt.Errorf("message has no descriptor"))
	}

	if err := d.validateEnvelope(msg); err != nil {
		return nil, err
	}

	var requesterDID string

	var attestationCID string

	if msg.Attestation != nil {
		payload, err := signing.AttestationPayload(msg.Descriptor)
		if err != nil {
			return nil, newError(KindInvalidEnvelope, "verify_attestation", err)
		}

		if err := signing.Verify(ctx, d.resolver, model.RoleAssertion, payload, msg.Attestation); err != nil {
			return nil, newError(KindInvalidSignature, "verify_attestation", err)
		}

		attestationCID, err = codec.CID(msg.Attestation)
		if err != nil {
			return nil, newError(KindBackendError, "verify_attestation", fmt.Errorf("failed to compute attestation cid: %w", err))
		}
	}

	if msg.Authorization != nil {
		descriptorCID, err := codec.CID(msg.Descriptor)
		if err != nil {
			return nil, newError(KindBackendError, "verify_authorization", fmt.Errorf("failed to compute descriptor cid: %w", err))
		}

		payload, err := signing.AuthorizationPayload(descriptorCID, attestationCID)
		if err != nil {
			return nil, newError(KindInvalidEnvelope, "verify_authorization", err)
		}

		if err := signing.Verify(ctx, d.resolver, model.RoleCapabilityInvocation, payload, msg.Authorization); err != nil {
			return nil, newError(KindInvalidSignature, "verify_authorization", err)
		}

		did, err := signing.SignerDID(msg.Authorization)
		if err != nil {
			return nil, newError(KindInvalidSignature, "verify_authorization", err)
		}

		requesterDID = string(did)
	}

	logger.Debug("dispatching message", "interface", msg.Descriptor.Interface(), "method", msg.Descriptor.Method(), "requester", requesterDID)

	switch desc := msg.Descriptor.(type) {
	case model.RecordsWrite:
		return d.handleRecordsWrite(ctx, ownerDID, requesterDID, msg, desc, ignoreParentCheck)
	case model.RecordsDelete:
		return d.handleRecordsDelete(ctx, ownerDID, requesterDID, msg, desc)
	case model.RecordsRead:
		return d.handleRecordsRead(ctx, ownerDID, requesterDID, desc)
	case model.RecordsQuery:
		return d.handleRecordsQuery(ctx, ownerDID, requesterDID, desc)
	case model.RecordsSync:
		return d.handleRecordsSync(ctx, ownerDID, requesterDID, desc)
	case model.ProtocolsConfigure:
		return d.handleProtocolsConfigure(ownerDID, requesterDID, desc)
	case model.ProtocolsQuery:
		return d.handleProtocolsQuery(desc)
	default:
		return nil, newError(KindInvalidEnvelope, "process_message", fmt.Errorf("unrecognized descriptor %s.%s", desc.Interface(), desc.Method()))
	}
}

// subjectFor reports whether requesterDID should be treated as the
// gate's owner or other subject.
func subjectFor(ownerDID, requesterDID string) protocol.Subject {
	if requesterDID != "" && requesterDID == ownerDID {
		return protocol.SubjectOwner
	}

	return protocol.SubjectOther
}

func (d *Dispatcher) requireGate(subject protocol.Subject, interfaceName, methodName string) error {
	allowed, err := d.gate.Allow(subject, interfaceName, methodName)
	if err != nil {
		return newError(KindBackendError, "gate", err)
	}

	if !allowed {
		return newError(KindUnauthorized, "gate", fmt.Errorf("%s may not call %s.%s", subject, interfaceName, methodName))
	}

	return nil
}

func (d *Dispatcher) enqueueToPeers(recordID string) {
	if d.queue == nil {
		return
	}

	for _, peer := range d.peers {
		if err := d.queue.Enqueue(sync.WorkItem{RemoteAddress: peer, RecordID: recordID}); err != nil && errors.Is(err, sync.ErrQueueFull) {
			logging.Named("dispatcher").Warn("sync queue full, dropping immediate propagation", "peer", peer, "record_id", recordID)
		}
	}
}
