package protocol

import (
	"errors"
	"fmt"

	"github.com/dwnode/dwnd/internal/model"
)

// ErrTypeNotPublished is returned when a write declares published=true
// under a protocol definition that is not itself published.
var ErrTypeNotPublished = errors.New("protocol: protocol is not published")

// ErrDataFormatNotAllowed is returned when a write's data_format is not
// among the type's declared data_formats.
var ErrDataFormatNotAllowed = errors.New("protocol: data_format not allowed for protocol_path")

// WriteShape is the subset of a RecordsWrite descriptor the structural
// checks evaluate.
type WriteShape struct {
	Protocol        string
	ProtocolVersion string
	ProtocolPath    string
	DataFormat      string
	Published       bool
}

// ValidateStructure checks items 1, 4, and 5 of the protocol-tagged
// write admissibility rule: the protocol_path resolves to a declared
// type, the write's data_format (if any) is one the type allows, and
// a published write requires a published protocol. It does not check
// context_id: neither the number of context_id segments nor the
// protocol_path of the ancestor records is compared against the
// write's protocol_path, here or in Authorize, which only looks up the
// ancestor an "of" rule names and skips the rule when none is found.
func ValidateStructure(def model.ProtocolDefinition, write WriteShape) error {
	if write.Protocol == "" || write.ProtocolVersion == "" || write.ProtocolPath == "" {
		return fmt.Errorf("%w: protocol-tagged write missing protocol/protocol_version/protocol_path", ErrPathNotInProtocol)
	}

	node, ok := def.Lookup(write.ProtocolPath)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPathNotInProtocol, write.ProtocolPath)
	}

	if write.DataFormat != "" && len(node.DataFormat) > 0 && !contains(node.DataFormat, write.DataFormat) {
		return fmt.Errorf("%w: %s", ErrDataFormatNotAllowed, write.DataFormat)
	}

	if write.Published && !def.Published {
		return fmt.Errorf("%w: %s", ErrTypeNotPublished, def.Protocol)
	}

	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}

	return false
}
