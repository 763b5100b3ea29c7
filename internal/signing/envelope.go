package signing

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/model"
)

type protectedHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

type ecdsaSignature struct {
	R, S *big.Int
}

// Sign produces a single-signature envelope over payload (already
// base64url-encoded), using priv and identifying the signer by kid
// (a DID URL pointing at the signing verification method).
func Sign(priv *ecdsa.PrivateKey, kid, payload string) (*model.SignatureEnvelope, error) {
	alg, err := algForCurve(priv.Curve)
	if err != nil {
		return nil, err
	}

	header, err := json.Marshal(protectedHeader{Alg: string(alg), Kid: kid})
	if err != nil {
		return nil, fmt.Errorf("signing: failed to marshal protected header: %w", err)
	}

	protected := base64.RawURLEncoding.EncodeToString(header)

	digest := digestSigningInput(alg, protected, payload)

	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("signing: failed to sign: %w", err)
	}

	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return nil, fmt.Errorf("signing: failed to encode signature: %w", err)
	}

	return &model.SignatureEnvelope{
		Payload: payload,
		Signatures: []model.JWSSignature{
			{
				Protected: protected,
				Signature: base64.RawURLEncoding.EncodeToString(der),
			},
		},
	}, nil
}

// Verify checks that every signature in envelope was made by a
// verification method assigned to role in its signer's resolved DID
// document, and that envelope's payload matches expectedPayload.
func Verify(ctx context.Context, resolver didresolve.Resolver, role model.Role, expectedPayload string, envelope *model.SignatureEnvelope) error {
	if envelope == nil || len(envelope.Signatures) == 0 {
		return ErrNoSignatures
	}

	if envelope.Payload != expectedPayload {
		return ErrPayloadMismatch
	}

	for _, sig := range envelope.Signatures {
		if err := verifyOne(ctx, resolver, role, envelope.Payload, sig); err != nil {
			return err
		}
	}

	return nil
}

func verifyOne(ctx context.Context, resolver didresolve.Resolver, role model.Role, payload string, sig model.JWSSignature) error {
	headerBytes, err := base64.RawURLEncoding.DecodeString(sig.Protected)
	if err != nil {
		return fmt.Errorf("signing: failed to decode protected header: %w", err)
	}

	var header protectedHeader

	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return fmt.Errorf("signing: failed to parse protected header: %w", err)
	}

	alg := Alg(header.Alg)
	if alg != AlgES256 && alg != AlgES384 {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, header.Alg)
	}

	didURL, err := model.ParseDIDURL(header.Kid)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidKid, header.Kid, err)
	}

	doc, err := resolver.Resolve(ctx, didURL.DID)
	if err != nil {
		return fmt.Errorf("signing: failed to resolve signer %q: %w", didURL.DID, err)
	}

	vm := doc.ResolveVerificationMethod(header.Kid, role)
	if vm == nil {
		return fmt.Errorf("%w: %q not assigned to role %q for %q", ErrInvalidKid, header.Kid, role, didURL.DID)
	}

	pub, keyAlg, err := PublicKey(vm)
	if err != nil {
		return err
	}

	if keyAlg != alg {
		return fmt.Errorf("%w: header says %q, key is %q", ErrUnsupportedAlgorithm, alg, keyAlg)
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return fmt.Errorf("signing: failed to decode signature: %w", err)
	}

	var parsed ecdsaSignature

	if _, err := asn1.Unmarshal(sigBytes, &parsed); err != nil {
		return fmt.Errorf("signing: failed to parse DER signature: %w", err)
	}

	digest := digestSigningInput(alg, sig.Protected, payload)

	if !ecdsa.Verify(pub, digest, parsed.R, parsed.S) {
		return ErrInvalidSignature
	}

	return nil
}

func algForCurve(curve elliptic.Curve) (Alg, error) {
	switch curve {
	case elliptic.P256():
		return AlgES256, nil
	case elliptic.P384():
		return AlgES384, nil
	default:
		return "", fmt.Errorf("%w: curve %s", ErrUnsupportedAlgorithm, curve.Params().Name)
	}
}

func digestSigningInput(alg Alg, protected, payload string) []byte {
	signingInput := protected + "." + payload

	if alg == AlgES384 {
		sum := sha512.Sum384([]byte(signingInput))
		return sum[:]
	}

	sum := sha256.Sum256([]byte(signingInput))

	return sum[:]
}
