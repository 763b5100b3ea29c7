// Package signing builds and verifies the detached-JWS signature
// envelopes that bind a message's attestation and authorization to a
// DID's verification methods.
package signing

import "errors"

var (
	// ErrInvalidSignature is returned when an envelope's signature does not verify.
	ErrInvalidSignature = errors.New("signing: invalid signature")
	// ErrInvalidKid is returned when a protected header's kid does not
	// resolve to a verification method in the signer's DID document.
	ErrInvalidKid = errors.New("signing: kid does not resolve to a verification method")
	// ErrUnsupportedAlgorithm is returned for any alg other than ES256/ES384.
	ErrUnsupportedAlgorithm = errors.New("signing: unsupported algorithm")
	// ErrNoSignatures is returned when an envelope carries zero signatures.
	ErrNoSignatures = errors.New("signing: envelope has no signatures")
	// ErrPayloadMismatch is returned when an envelope's payload does not
	// match the value the caller expected to verify.
	ErrPayloadMismatch = errors.New("signing: payload does not match expected value")
)
