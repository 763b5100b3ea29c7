package didresolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dwnode/dwnd/internal/model"
)

// Fetcher retrieves a resource over HTTP. It is injected so WebResolver
// does not hard-code a transport (and can be faked in tests).
type Fetcher interface {
	Fetch(ctx context.Context, requestURL string) ([]byte, error)
}

// WebResolver resolves did:web identifiers by fetching a well-known
// document from the subject's domain.
type WebResolver struct {
	fetcher Fetcher
}

// NewWebResolver builds a did:web Resolver using fetcher for retrieval.
func NewWebResolver(fetcher Fetcher) *WebResolver {
	return &WebResolver{fetcher: fetcher}
}

// Resolve fetches and parses the DID document for a did:web identifier.
func (r *WebResolver) Resolve(ctx context.Context, did model.DID) (*model.Document, error) {
	if did.Method() != "web" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, did.Method())
	}

	requestURL, err := documentURL(did)
	if err != nil {
		return nil, err
	}

	body, err := r.fetcher.Fetch(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("didresolve: failed to fetch %s: %w", requestURL, err)
	}

	var doc model.Document

	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("didresolve: failed to parse DID document from %s: %w", requestURL, err)
	}

	return &doc, nil
}

// documentURL derives the well-known document URL a did:web identifier
// resolves to: did:web:example.com -> https://example.com/.well-known/did.json,
// did:web:example.com:user:alice -> https://example.com/user/alice/did.json.
func documentURL(did model.DID) (string, error) {
	methodSpecificID := string(did)[len("did:web:"):]
	if methodSpecificID == "" {
		return "", fmt.Errorf("%w: empty did:web identifier", ErrNotFound)
	}

	segments := strings.Split(methodSpecificID, ":")

	decoded := make([]string, len(segments))

	for i, seg := range segments {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("didresolve: invalid did:web segment %q: %w", seg, err)
		}

		decoded[i] = s
	}

	domain := decoded[0]

	if len(decoded) == 1 {
		return "https://" + domain + "/.well-known/did.json", nil
	}

	return "https://" + domain + "/" + strings.Join(decoded[1:], "/") + "/did.json", nil
}
