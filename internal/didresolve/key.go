package didresolve

import (
	"context"
	"fmt"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/model"
)

// KeyResolver resolves did:key identifiers entirely locally: the DID
// itself encodes the public key, so there is nothing to fetch.
type KeyResolver struct{}

// NewKeyResolver builds a did:key Resolver.
func NewKeyResolver() *KeyResolver {
	return &KeyResolver{}
}

// Resolve synthesizes the DID document a did:key identifier implies: a
// single verification method, assigned to the authentication,
// assertionMethod, capabilityInvocation and capabilityDelegation roles
// (not to keyAgreement).
func (KeyResolver) Resolve(_ context.Context, did model.DID) (*model.Document, error) {
	if did.Method() != "key" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, did.Method())
	}

	methodSpecificID := string(did)[len("did:key:"):]
	if methodSpecificID == "" {
		return nil, fmt.Errorf("%w: empty did:key identifier", ErrNotFound)
	}

	multicodec, _, err := codec.DecodeMultikey(methodSpecificID)
	if err != nil {
		return nil, fmt.Errorf("didresolve: invalid did:key identifier %q: %w", did, err)
	}

	var keyType string

	switch multicodec {
	case codec.MulticodecP256PubKey:
		keyType = "JsonWebKey2020"
	case codec.MulticodecP384PubKey:
		keyType = "JsonWebKey2020"
	default:
		return nil, fmt.Errorf("%w: multicodec 0x%x", ErrUnsupportedMethod, multicodec)
	}

	kid := string(did) + "#" + methodSpecificID

	vm := model.VerificationMethod{
		ID:                 kid,
		Type:               keyType,
		Controller:         string(did),
		PublicKeyMultibase: methodSpecificID,
	}

	return &model.Document{
		Context:              []string{"https://www.w3.org/ns/did/v1"},
		ID:                   string(did),
		VerificationMethod:   []model.VerificationMethod{vm},
		Authentication:       []string{kid},
		AssertionMethod:      []string{kid},
		CapabilityInvocation: []string{kid},
		CapabilityDelegation: []string{kid},
	}, nil
}
