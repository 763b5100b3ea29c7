package model

// ActionWho names the party an ActionRule grants access to.
type ActionWho string

const (
	WhoAnyone    ActionWho = "anyone"
	WhoAuthor    ActionWho = "author"
	WhoRecipient ActionWho = "recipient"
)

// ActionCan names the operation an ActionRule grants.
type ActionCan string

const (
	CanRead  ActionCan = "read"
	CanWrite ActionCan = "write"
)

// ActionRule grants Can to Who, optionally relative to an ancestor
// record reached by Of (a protocol_path one or more segments up the
// context_id chain).
type ActionRule struct {
	Who ActionWho `cbor:"who"         json:"who"`
	Of  string    `cbor:"of,omitempty" json:"of,omitempty"`
	Can ActionCan `cbor:"can"         json:"can"`
}

// ProtocolType is one node of a protocol's record-type tree, keyed by
// the last segment of its protocol_path.
type ProtocolType struct {
	Schema     string                  `cbor:"schema,omitempty" json:"schema,omitempty"`
	DataFormat []string                `cbor:"dataFormat,omitempty" json:"dataFormats,omitempty"`
	Actions    []ActionRule            `cbor:"actions,omitempty" json:"actions,omitempty"`
	Children   map[string]ProtocolType `cbor:"children,omitempty" json:"children,omitempty"`
}

// ProtocolDefinition is the body of a ProtocolsConfigure message: a
// protocol URI plus the record-type tree its messages must conform to.
type ProtocolDefinition struct {
	Protocol  string                  `cbor:"protocol"            json:"protocol"`
	Published bool                    `cbor:"published,omitempty" json:"published,omitempty"`
	Types     map[string]ProtocolType `cbor:"types,omitempty"     json:"types,omitempty"`
}

// Lookup resolves a '/'-separated protocol_path to its ProtocolType,
// walking the type tree from the root. An empty path is invalid.
func (pd *ProtocolDefinition) Lookup(protocolPath string) (ProtocolType, bool) {
	segments := splitPath(protocolPath)
	if len(segments) == 0 {
		return ProtocolType{}, false
	}

	node, ok := pd.Types[segments[0]]
	if !ok {
		return ProtocolType{}, false
	}

	for _, segment := range segments[1:] {
		node, ok = node.Children[segment]
		if !ok {
			return ProtocolType{}, false
		}
	}

	return node, true
}

// Parent returns the protocol_path of the immediate ancestor of path,
// i.e. path with its last segment removed. ok is false for a root (single-segment) path.
func Parent(protocolPath string) (parent string, ok bool) {
	segments := splitPath(protocolPath)
	if len(segments) <= 1 {
		return "", false
	}

	return joinPath(segments[:len(segments)-1]), true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	var segments []string

	start := 0

	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}

			start = i + 1
		}
	}

	return segments
}

func joinPath(segments []string) string {
	out := segments[0]
	for _, s := range segments[1:] {
		out += "/" + s
	}

	return out
}
