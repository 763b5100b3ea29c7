package signing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dwnode/dwnd/internal/model"
)

// SignerDID recovers the DID of envelope's first signature, by
// decoding its protected header's kid. Callers use this ahead of
// Verify to learn who to treat as the message's requester/attester;
// Verify itself re-derives and checks the same kid per signature.
func SignerDID(envelope *model.SignatureEnvelope) (model.DID, error) {
	if envelope == nil || len(envelope.Signatures) == 0 {
		return "", ErrNoSignatures
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(envelope.Signatures[0].Protected)
	if err != nil {
		return "", fmt.Errorf("signing: failed to decode protected header: %w", err)
	}

	var header protectedHeader

	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return "", fmt.Errorf("signing: failed to parse protected header: %w", err)
	}

	didURL, err := model.ParseDIDURL(header.Kid)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidKid, header.Kid, err)
	}

	return didURL.DID, nil
}
