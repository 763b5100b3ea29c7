package signing

import (
	"encoding/base64"
	"fmt"

	"github.com/dwnode/dwnd/internal/codec"
)

// authorizationBody is the canonical-CBOR-encoded value an
// authorization envelope's payload decodes to: a binding of the
// authorization to the descriptor it covers and, when present, to the
// attestation made over the same descriptor.
type authorizationBody struct {
	DescriptorCid  string `cbor:"descriptorCid"`
	AttestationCid string `cbor:"attestationCid,omitempty"`
}

// AttestationPayload builds the base64url JWS payload an attestation
// envelope signs: the CID of the canonical encoding of descriptor,
// rendered as its own UTF-8 bytes.
func AttestationPayload(descriptor any) (string, error) {
	descriptorCID, err := codec.CID(descriptor)
	if err != nil {
		return "", fmt.Errorf("signing: failed to compute descriptor cid: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString([]byte(descriptorCID)), nil
}

// AuthorizationPayload builds the base64url JWS payload an
// authorization envelope signs, binding it to descriptorCID and,
// optionally, the attestationCID made over the same descriptor.
func AuthorizationPayload(descriptorCID, attestationCID string) (string, error) {
	encoded, err := codec.EncodeCanonical(authorizationBody{
		DescriptorCid:  descriptorCID,
		AttestationCid: attestationCID,
	})
	if err != nil {
		return "", fmt.Errorf("signing: failed to encode authorization payload: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(encoded), nil
}

// ParseAttestationPayload recovers the descriptor CID an attestation payload commits to.
func ParseAttestationPayload(payload string) (descriptorCID string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("signing: failed to decode attestation payload: %w", err)
	}

	return string(raw), nil
}

// ParseAuthorizationPayload recovers the descriptor/attestation CID
// bindings an authorization payload commits to.
func ParseAuthorizationPayload(payload string) (descriptorCID, attestationCID string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("signing: failed to decode authorization payload: %w", err)
	}

	var body authorizationBody

	if err := codec.DecodeCanonical(raw, &body); err != nil {
		return "", "", fmt.Errorf("signing: failed to decode authorization payload body: %w", err)
	}

	return body.DescriptorCid, body.AttestationCid, nil
}
