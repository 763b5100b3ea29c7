package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/model"
)

// ErrPathNotInProtocol is returned when a protocol_path has no node in
// the configured protocol's type tree.
var ErrPathNotInProtocol = errors.New("protocol: protocol_path not defined by protocol")

// AncestorLookup resolves the attester/recipient of the record at
// contextID/protocolPath, so an ActionRule's "of" ancestor reference
// can be evaluated against a record other than the one currently
// being authorized.
type AncestorLookup interface {
	FindByContextAndPath(ctx context.Context, contextID, protocolPath string) (attester, recipient string, ok bool, err error)
}

// Request is the record-specific context an authorization decision is
// made against.
type Request struct {
	Protocol        string
	ProtocolVersion string
	ProtocolPath    string
	ContextID       string
	Can             model.ActionCan
	RequesterDID    string
	// Attester/Recipient describe the record this action targets (for
	// a write, the attester is the requester itself).
	Attester  string
	Recipient string
}

// Authorize walks req's protocol_path to its type node and checks
// whether any ActionRule matching req.Can grants req.RequesterDID
// access, resolving "of" ancestor references via lookup.
func Authorize(ctx context.Context, registry *Registry, lookup AncestorLookup, req Request) (bool, error) {
	def, ok := registry.Lookup(req.Protocol, req.ProtocolVersion)
	if !ok {
		return false, fmt.Errorf("%w: %s@%s", ErrNotConfigured, req.Protocol, req.ProtocolVersion)
	}

	node, ok := def.Lookup(req.ProtocolPath)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPathNotInProtocol, req.ProtocolPath)
	}

	for _, rule := range node.Actions {
		if rule.Can != req.Can {
			continue
		}

		attester, recipient := req.Attester, req.Recipient

		if rule.Of != "" {
			ancestorAttester, ancestorRecipient, found, err := lookup.FindByContextAndPath(ctx, req.ContextID, rule.Of)
			if err != nil {
				return false, fmt.Errorf("protocol: failed to resolve ancestor %q: %w", rule.Of, err)
			}

			if !found {
				continue
			}

			attester, recipient = ancestorAttester, ancestorRecipient
		}

		switch rule.Who {
		case model.WhoAnyone:
			return true, nil
		case model.WhoAuthor:
			if req.RequesterDID != "" && req.RequesterDID == attester {
				return true, nil
			}
		case model.WhoRecipient:
			if req.RequesterDID != "" && req.RequesterDID == recipient {
				return true, nil
			}
		}
	}

	return false, nil
}
