package codec

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

// Multicodec prefixes for the two curves did:key verification methods
// in this module support, per spec.md §6.
const (
	MulticodecP256PubKey = 0x1200
	MulticodecP384PubKey = 0x1201
)

// ErrUnknownMulticodec is returned when decoding a did:key multibase
// value whose multicodec prefix is not one this module understands.
var ErrUnknownMulticodec = errors.New("codec: unrecognized did:key multicodec prefix")

// EncodeMultikey prepends the multicodec varint prefix to a compressed
// SEC1 public key and multibase-encodes it as base58btc (the "z..."
// form did:key identifiers use).
func EncodeMultikey(multicodec uint64, compressedKey []byte) (string, error) {
	prefixed := varint.ToUvarint(multicodec)
	prefixed = append(prefixed, compressedKey...)

	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", fmt.Errorf("codec: failed to multibase-encode key: %w", err)
	}

	return encoded, nil
}

// DecodeMultikey reverses EncodeMultikey, returning the multicodec and the raw compressed key bytes.
func DecodeMultikey(encoded string) (multicodec uint64, compressedKey []byte, err error) {
	_, data, err := multibase.Decode(encoded)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: failed to multibase-decode key: %w", err)
	}

	code, n, err := varint.FromUvarint(data)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: failed to read multicodec prefix: %w", err)
	}

	switch code {
	case MulticodecP256PubKey, MulticodecP384PubKey:
	default:
		return 0, nil, fmt.Errorf("%w: 0x%x", ErrUnknownMulticodec, code)
	}

	return code, data[n:], nil
}
