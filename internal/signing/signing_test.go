package signing_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/signing"
)

type testSigner struct {
	priv *ecdsa.PrivateKey
	did  model.DID
	kid  string
}

func newTestSigner(t *testing.T) testSigner {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	compressed := elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)

	encoded, err := codec.EncodeMultikey(codec.MulticodecP256PubKey, compressed)
	require.NoError(t, err)

	did := model.DID("did:key:" + encoded)

	return testSigner{priv: priv, did: did, kid: string(did) + "#" + encoded}
}

type descriptor struct {
	DataCid string `cbor:"dataCid"`
}

func TestAttestationEnvelopeRoundTrips(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	resolver := didresolve.NewKeyResolver()

	desc := descriptor{DataCid: "bafy-data"}

	payload, err := signing.AttestationPayload(desc)
	require.NoError(t, err)

	envelope, err := signing.Sign(signer.priv, signer.kid, payload)
	require.NoError(t, err)

	err = signing.Verify(context.Background(), resolver, model.RoleAssertion, payload, envelope)
	assert.NoError(t, err)
}

func TestAttestationEnvelopeRejectsTamperedPayload(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	resolver := didresolve.NewKeyResolver()

	payload, err := signing.AttestationPayload(descriptor{DataCid: "bafy-data"})
	require.NoError(t, err)

	envelope, err := signing.Sign(signer.priv, signer.kid, payload)
	require.NoError(t, err)

	otherPayload, err := signing.AttestationPayload(descriptor{DataCid: "bafy-other"})
	require.NoError(t, err)

	err = signing.Verify(context.Background(), resolver, model.RoleAssertion, otherPayload, envelope)
	assert.ErrorIs(t, err, signing.ErrPayloadMismatch)
}

func TestAttestationEnvelopeRejectsTamperedSignature(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	resolver := didresolve.NewKeyResolver()

	payload, err := signing.AttestationPayload(descriptor{DataCid: "bafy-data"})
	require.NoError(t, err)

	envelope, err := signing.Sign(signer.priv, signer.kid, payload)
	require.NoError(t, err)

	envelope.Signatures[0].Signature = envelope.Signatures[0].Signature[:len(envelope.Signatures[0].Signature)-2] + "AA"

	err = signing.Verify(context.Background(), resolver, model.RoleAssertion, payload, envelope)
	assert.Error(t, err)
}

func TestAttestationEnvelopeRejectsWrongRole(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	resolver := didresolve.NewKeyResolver()

	payload, err := signing.AttestationPayload(descriptor{DataCid: "bafy-data"})
	require.NoError(t, err)

	envelope, err := signing.Sign(signer.priv, signer.kid, payload)
	require.NoError(t, err)

	err = signing.Verify(context.Background(), resolver, model.RoleKeyAgreement, payload, envelope)
	assert.ErrorIs(t, err, signing.ErrInvalidKid)
}

func TestAuthorizationPayloadRoundTrips(t *testing.T) {
	t.Parallel()

	payload, err := signing.AuthorizationPayload("bafy-descriptor", "bafy-attestation")
	require.NoError(t, err)

	descriptorCID, attestationCID, err := signing.ParseAuthorizationPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "bafy-descriptor", descriptorCID)
	assert.Equal(t, "bafy-attestation", attestationCID)
}
