package dispatcher

import (
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
)

func (d *Dispatcher) handleProtocolsConfigure(ownerDID, requesterDID string, configure model.ProtocolsConfigure) (*ProtocolsConfigureReply, error) {
	if requesterDID != ownerDID {
		return nil, newError(KindUnauthorized, "protocols.configure", fmt.Errorf("only the owner may configure protocols"))
	}

	if err := d.requireGate(protocol.SubjectOwner, model.InterfaceProtocols, model.MethodConfigure); err != nil {
		return nil, err
	}

	if configure.Definition == nil {
		return nil, newError(KindInvalidEnvelope, "protocols.configure", fmt.Errorf("missing protocol definition"))
	}

	if err := d.registry.Configure(configure.ProtocolVersion, *configure.Definition); err != nil {
		if errors.Is(err, protocol.ErrAlreadyConfigured) {
			return nil, newError(KindProtocolViolation, "protocols.configure", err)
		}

		return nil, newError(KindBackendError, "protocols.configure", err)
	}

	return &ProtocolsConfigureReply{Protocol: configure.Definition.Protocol, ProtocolVersion: configure.ProtocolVersion}, nil
}

func (d *Dispatcher) handleProtocolsQuery(query model.ProtocolsQuery) (*ProtocolsQueryReply, error) {
	defs := d.registry.Definitions(query.Filter.Protocol, query.Filter.Versions)

	return &ProtocolsQueryReply{Definitions: defs}, nil
}
