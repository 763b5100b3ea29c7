package dispatcher

import (
	"fmt"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/model"
)

// validateEnvelope enforces spec.md §4.6's envelope invariants: a
// present data payload requires data_cid and data_format on the
// descriptor, and a declared data_cid must match the payload's actual
// content address.
func (d *Dispatcher) validateEnvelope(msg model.Message) error {
	write, ok := msg.Descriptor.(model.RecordsWrite)
	if !ok {
		return nil
	}

	if len(msg.Data) == 0 {
		return nil
	}

	if write.DataCID == "" || write.DataFormat == "" {
		return newError(KindInvalidEnvelope, "validate_envelope", fmt.Errorf("data present but descriptor is missing data_cid/data_format"))
	}

	computed, err := codec.DataCID(msg.Data, d.chunkOpts)
	if err != nil {
		return newError(KindBackendError, "validate_envelope", fmt.Errorf("failed to compute data_cid: %w", err))
	}

	if computed != write.DataCID {
		return newError(KindCidMismatch, "validate_envelope", fmt.Errorf("descriptor data_cid %q does not match data_cid(data) %q", write.DataCID, computed))
	}

	return nil
}
