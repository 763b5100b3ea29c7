package codec

import (
	"crypto/sha256"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// DagCBORCodec is the multicodec tag for DAG-CBOR encoded data (0x71).
const DagCBORCodec = 0x71

// CIDFromCanonicalBytes wraps a SHA2-256 multihash of raw canonical
// CBOR bytes into a CIDv1, rendered base32-lowercase (go-cid's default
// v1 string encoding), tagged with the DAG-CBOR codec.
func CIDFromCanonicalBytes(data []byte) (string, error) {
	sum := sha256.Sum256(data)

	mhash, err := mh.Encode(sum[:], mh.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("codec: failed to build multihash: %w", err)
	}

	return gocid.NewCidV1(DagCBORCodec, mhash).String(), nil
}

// CID canonically encodes value and returns the CID of the resulting bytes.
func CID(value any) (string, error) {
	encoded, err := EncodeCanonical(value)
	if err != nil {
		return "", err
	}

	return CIDFromCanonicalBytes(encoded)
}

// IsValidCID reports whether s parses as a CID.
func IsValidCID(s string) bool {
	_, err := gocid.Decode(s)

	return err == nil
}
