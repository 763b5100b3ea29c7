package transport_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/dispatcher"
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
	"github.com/dwnode/dwnd/internal/signing"
	"github.com/dwnode/dwnd/internal/storage"
	"github.com/dwnode/dwnd/internal/transport"
)

func newTestServer(t *testing.T) (*httptest.Server, *ecdsa.PrivateKey, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	records, err := storage.NewRecordStore(db)
	require.NoError(t, err)

	data, err := storage.NewDataStore(db)
	require.NoError(t, err)

	gate, err := protocol.NewGate()
	require.NoError(t, err)

	resolver := didresolve.NewKeyResolver()

	d := dispatcher.New(records, data, resolver, protocol.NewRegistry(), gate, nil, nil, nil, codec.ChunkOptions{})

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	compressed := elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)

	encoded, err := codec.EncodeMultikey(codec.MulticodecP256PubKey, compressed)
	require.NoError(t, err)

	did := "did:key:" + encoded

	server := transport.NewServer(d, records)

	return httptest.NewServer(server), priv, did
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerRejectsUnauthorizedWrite(t *testing.T) {
	t.Parallel()

	srv, _, did := newTestServer(t)
	defer srv.Close()

	desc := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}
	msg := model.Message{Descriptor: desc}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/dwn/"+did, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerAcceptsAuthorizedWrite(t *testing.T) {
	t.Parallel()

	srv, priv, did := newTestServer(t)
	defer srv.Close()

	kid := did + "#" + did[len("did:key:"):]

	desc := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}

	descriptorCID, err := codec.CID(desc)
	require.NoError(t, err)

	payload, err := signing.AuthorizationPayload(descriptorCID, "")
	require.NoError(t, err)

	envelope, err := signing.Sign(priv, kid, payload)
	require.NoError(t, err)

	msg := model.Message{Descriptor: desc, Authorization: envelope}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/dwn/"+did, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply dispatcher.RecordsWriteReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.NotEmpty(t, reply.RecordID)
}

func TestServerManifestEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, did := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dwn/" + did + "/manifest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refs []model.LocalRecordRef
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refs))
	require.Empty(t, refs)
}
