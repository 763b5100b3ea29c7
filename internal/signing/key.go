package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/model"
)

// Alg names the JWS algorithm a verification method's curve implies.
type Alg string

const (
	AlgES256 Alg = "ES256"
	AlgES384 Alg = "ES384"
)

// PublicKey extracts the ECDSA public key a VerificationMethod
// carries, from either its multibase-encoded multicodec key
// (did:key-style) or its JWK (did:web-style), plus the JWS algorithm
// that key's curve implies.
func PublicKey(vm *model.VerificationMethod) (*ecdsa.PublicKey, Alg, error) {
	if vm.PublicKeyMultibase != "" {
		return publicKeyFromMultibase(vm.PublicKeyMultibase)
	}

	if vm.PublicKeyJWK != nil {
		return publicKeyFromJWK(vm.PublicKeyJWK)
	}

	return nil, "", fmt.Errorf("signing: verification method %q carries no recognized public key encoding", vm.ID)
}

func publicKeyFromMultibase(encoded string) (*ecdsa.PublicKey, Alg, error) {
	multicodec, compressed, err := codec.DecodeMultikey(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("signing: failed to decode multibase key: %w", err)
	}

	var (
		curve elliptic.Curve
		alg   Alg
	)

	switch multicodec {
	case codec.MulticodecP256PubKey:
		curve, alg = elliptic.P256(), AlgES256
	case codec.MulticodecP384PubKey:
		curve, alg = elliptic.P384(), AlgES384
	default:
		return nil, "", fmt.Errorf("%w: multicodec 0x%x", ErrUnsupportedAlgorithm, multicodec)
	}

	x, y := elliptic.UnmarshalCompressed(curve, compressed)
	if x == nil {
		return nil, "", fmt.Errorf("signing: invalid compressed point for curve %s", curve.Params().Name)
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, alg, nil
}

func publicKeyFromJWK(raw map[string]any) (*ecdsa.PublicKey, Alg, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, "", fmt.Errorf("signing: failed to marshal JWK: %w", err)
	}

	key, err := jwk.ParseKey(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("signing: failed to parse JWK: %w", err)
	}

	var pub ecdsa.PublicKey

	if err := key.Raw(&pub); err != nil {
		return nil, "", fmt.Errorf("signing: JWK is not an EC public key: %w", err)
	}

	var alg Alg

	switch pub.Curve {
	case elliptic.P256():
		alg = AlgES256
	case elliptic.P384():
		alg = AlgES384
	default:
		return nil, "", fmt.Errorf("%w: curve %s", ErrUnsupportedAlgorithm, pub.Curve.Params().Name)
	}

	return &pub, alg, nil
}
