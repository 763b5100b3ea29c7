package protocol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
)

func threadDefinition() model.ProtocolDefinition {
	return model.ProtocolDefinition{
		Protocol: "https://example.org/protocol/thread",
		Types: map[string]model.ProtocolType{
			"thread": {
				Actions: []model.ActionRule{{Who: model.WhoAuthor, Can: model.CanWrite}},
				Children: map[string]model.ProtocolType{
					"message": {
						Actions: []model.ActionRule{
							{Who: model.WhoRecipient, Can: model.CanRead},
							{Who: model.WhoAnyone, Of: "thread", Can: model.CanRead},
						},
					},
				},
			},
		},
	}
}

func TestRegistryConfigureIsImmutable(t *testing.T) {
	t.Parallel()

	registry := protocol.NewRegistry()

	require.NoError(t, registry.Configure("1.0", threadDefinition()))

	err := registry.Configure("1.0", threadDefinition())
	assert.ErrorIs(t, err, protocol.ErrAlreadyConfigured)

	def, ok := registry.Lookup("https://example.org/protocol/thread", "1.0")
	require.True(t, ok)
	assert.Equal(t, "https://example.org/protocol/thread", def.Protocol)
}

type fakeLookup struct {
	attester, recipient string
	found               bool
}

func (f fakeLookup) FindByContextAndPath(_ context.Context, _, _ string) (string, string, bool, error) {
	return f.attester, f.recipient, f.found, nil
}

func TestAuthorizeGrantsViaAncestorRule(t *testing.T) {
	t.Parallel()

	registry := protocol.NewRegistry()
	require.NoError(t, registry.Configure("1.0", threadDefinition()))

	lookup := fakeLookup{attester: "did:key:alice", recipient: "did:key:bob", found: true}

	allowed, err := protocol.Authorize(context.Background(), registry, lookup, protocol.Request{
		Protocol:        "https://example.org/protocol/thread",
		ProtocolVersion: "1.0",
		ProtocolPath:    "thread/message",
		Can:             model.CanRead,
		RequesterDID:    "did:key:anyone-else",
	})
	require.NoError(t, err)
	assert.True(t, allowed, "anyone-of-thread rule should grant read access")
}

func TestAuthorizeRecipientRuleDenied(t *testing.T) {
	t.Parallel()

	registry := protocol.NewRegistry()
	require.NoError(t, registry.Configure("1.0", threadDefinition()))

	lookup := fakeLookup{found: false}

	allowed, err := protocol.Authorize(context.Background(), registry, lookup, protocol.Request{
		Protocol:        "https://example.org/protocol/thread",
		ProtocolVersion: "1.0",
		ProtocolPath:    "thread/message",
		Can:             model.CanRead,
		RequesterDID:    "did:key:stranger",
		Recipient:       "did:key:bob",
	})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorizeUnknownPath(t *testing.T) {
	t.Parallel()

	registry := protocol.NewRegistry()
	require.NoError(t, registry.Configure("1.0", threadDefinition()))

	_, err := protocol.Authorize(context.Background(), registry, fakeLookup{}, protocol.Request{
		Protocol:        "https://example.org/protocol/thread",
		ProtocolVersion: "1.0",
		ProtocolPath:    "thread/nonexistent",
		Can:             model.CanRead,
	})
	assert.ErrorIs(t, err, protocol.ErrPathNotInProtocol)
}

func TestGateAllowsOwnerAndLimitsOthers(t *testing.T) {
	t.Parallel()

	gate, err := protocol.NewGate()
	require.NoError(t, err)

	allowed, err := gate.Allow(protocol.SubjectOwner, model.InterfaceProtocols, model.MethodConfigure)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = gate.Allow(protocol.SubjectOther, model.InterfaceProtocols, model.MethodConfigure)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = gate.Allow(protocol.SubjectOther, model.InterfaceRecords, model.MethodRead)
	require.NoError(t, err)
	assert.True(t, allowed)
}
