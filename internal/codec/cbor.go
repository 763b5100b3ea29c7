// Package codec implements the deterministic binary encoding and
// content-identifier computation the rest of the module relies on for
// record and descriptor identity.
package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var canonicalEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		Time:          cbor.TimeRFC3339Nano,
		NaN:           cbor.NaNConvertNone,
		Inf:           cbor.InfConvertNone,
		IndefLength:   cbor.IndefLengthForbidden,
		ShortestFloat: cbor.ShortestFloatNone,
	}

	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid canonical cbor options: %v", err))
	}

	return mode
}

// ErrUnencodable is returned when the CBOR encoder cannot marshal a
// value (e.g. a channel, a function, or a complex number).
var ErrUnencodable = errors.New("codec: value is not canonically encodable")

// EncodeCanonical deterministically encodes value as CBOR: map keys are
// sorted and there are no indefinite-length items. Floating-point
// values are not rejected: a float is encoded as a CBOR float like any
// other value. Two calls with structurally equal values always produce
// identical bytes.
func EncodeCanonical(value any) ([]byte, error) {
	out, err := canonicalEncMode.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnencodable, err)
	}

	return out, nil
}

// DecodeCanonical decodes CBOR bytes into out.
func DecodeCanonical(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("codec: failed to decode cbor: %w", err)
	}

	return nil
}
