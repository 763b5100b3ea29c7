package dispatcher_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/dispatcher"
	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/protocol"
	"github.com/dwnode/dwnd/internal/signing"
	"github.com/dwnode/dwnd/internal/storage"
	wnsync "github.com/dwnode/dwnd/internal/sync"
)

type testSigner struct {
	priv *ecdsa.PrivateKey
	did  string
	kid  string
}

func newSigner(t *testing.T) testSigner {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	compressed := elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)

	encoded, err := codec.EncodeMultikey(codec.MulticodecP256PubKey, compressed)
	require.NoError(t, err)

	did := "did:key:" + encoded

	return testSigner{priv: priv, did: did, kid: did + "#" + encoded}
}

func (s testSigner) authorize(t *testing.T, descriptor any) *model.SignatureEnvelope {
	t.Helper()

	descriptorCID, err := codec.CID(descriptor)
	require.NoError(t, err)

	payload, err := signing.AuthorizationPayload(descriptorCID, "")
	require.NoError(t, err)

	envelope, err := signing.Sign(s.priv, s.kid, payload)
	require.NoError(t, err)

	return envelope
}

type fixture struct {
	dispatcher *dispatcher.Dispatcher
	records    *storage.RecordStore
	data       *storage.DataStore
	registry   *protocol.Registry
	owner      testSigner
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	records, err := storage.NewRecordStore(db)
	require.NoError(t, err)

	data, err := storage.NewDataStore(db)
	require.NoError(t, err)

	registry := protocol.NewRegistry()

	gate, err := protocol.NewGate()
	require.NoError(t, err)

	resolver := didresolve.NewKeyResolver()

	owner := newSigner(t)

	d := dispatcher.New(records, data, resolver, registry, gate, nil, nil, nil, codec.ChunkOptions{})

	return fixture{dispatcher: d, records: records, data: data, registry: registry, owner: owner}
}

func TestDispatcherRejectsWriteWithoutAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	desc := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}
	msg := model.Message{Descriptor: desc}

	_, err := f.dispatcher.Process(context.Background(), f.owner.did, msg)
	require.Error(t, err)
	assert.Equal(t, dispatcher.KindUnauthorized, dispatcher.KindOf(err))
}

func TestDispatcherAcceptsAuthorizedWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	desc := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}

	msg := model.Message{Descriptor: desc, Authorization: f.owner.authorize(t, desc)}

	reply, err := f.dispatcher.Process(context.Background(), f.owner.did, msg)
	require.NoError(t, err)

	writeReply, ok := reply.(*dispatcher.RecordsWriteReply)
	require.True(t, ok)

	stored, err := f.records.Get(context.Background(), writeReply.RecordID)
	require.NoError(t, err)
	assert.Equal(t, writeReply.EntryID, stored.EntryID)
}

func TestDispatcherDataCIDBinding(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	data := []byte("test data")

	dataCID, err := codec.DataCID(data, codec.ChunkOptions{})
	require.NoError(t, err)

	desc := model.RecordsWrite{
		MessageTimestamp: time.Now().UTC(),
		DataCID:          dataCID,
		DataFormat:       "text/plain",
	}

	msg := model.Message{Descriptor: desc, Data: data, Authorization: f.owner.authorize(t, desc)}

	_, err = f.dispatcher.Process(context.Background(), f.owner.did, msg)
	require.NoError(t, err)

	tamperedDesc := desc
	tamperedDesc.DataCID = "bafkqaaa-wrong"

	tamperedMsg := model.Message{Descriptor: tamperedDesc, Data: data, Authorization: f.owner.authorize(t, tamperedDesc)}

	_, err = f.dispatcher.Process(context.Background(), f.owner.did, tamperedMsg)
	require.Error(t, err)
	assert.Equal(t, dispatcher.KindCidMismatch, dispatcher.KindOf(err))
}

func TestDispatcherUpdateSupersession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t1 := time.Now().UTC()

	data1 := []byte("version one")
	dataCID1, err := codec.DataCID(data1, codec.ChunkOptions{})
	require.NoError(t, err)

	initial := model.RecordsWrite{MessageTimestamp: t1, DataCID: dataCID1, DataFormat: "text/plain"}
	initialMsg := model.Message{Descriptor: initial, Data: data1, Authorization: f.owner.authorize(t, initial)}

	reply, err := f.dispatcher.Process(context.Background(), f.owner.did, initialMsg)
	require.NoError(t, err)
	writeReply := reply.(*dispatcher.RecordsWriteReply)

	data2 := []byte("version two")
	dataCID2, err := codec.DataCID(data2, codec.ChunkOptions{})
	require.NoError(t, err)

	update := model.RecordsWrite{
		MessageTimestamp: t1.Add(time.Second),
		DataCID:          dataCID2,
		DataFormat:       "text/plain",
		ParentID:         writeReply.EntryID,
	}
	updateMsg := model.Message{
		RecordID:      writeReply.RecordID,
		Descriptor:    update,
		Data:          data2,
		Authorization: f.owner.authorize(t, update),
	}

	_, err = f.dispatcher.Process(context.Background(), f.owner.did, updateMsg)
	require.NoError(t, err)

	stored, err := f.records.Get(context.Background(), writeReply.RecordID)
	require.NoError(t, err)

	storedWrite, ok := stored.Message.Descriptor.(model.RecordsWrite)
	require.True(t, ok)
	assert.Equal(t, dataCID2, storedWrite.DataCID)

	_, err = f.data.Read(context.Background(), dataCID1)
	assert.ErrorIs(t, err, storage.ErrDataNotFound)
}

func TestDispatcherDeleteDominatesEarlierWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t1 := time.Now().UTC()

	write := model.RecordsWrite{MessageTimestamp: t1}
	writeMsg := model.Message{Descriptor: write, Authorization: f.owner.authorize(t, write)}

	reply, err := f.dispatcher.Process(context.Background(), f.owner.did, writeMsg)
	require.NoError(t, err)
	writeReply := reply.(*dispatcher.RecordsWriteReply)

	del := model.RecordsDelete{MessageTimestamp: t1.Add(time.Second), RecordID: writeReply.RecordID}
	delMsg := model.Message{RecordID: writeReply.RecordID, Descriptor: del, Authorization: f.owner.authorize(t, del)}

	_, err = f.dispatcher.Process(context.Background(), f.owner.did, delMsg)
	require.NoError(t, err)

	read := model.RecordsRead{MessageTimestamp: time.Now().UTC(), RecordID: writeReply.RecordID}

	readReply, err := f.dispatcher.Process(context.Background(), f.owner.did, model.Message{
		Descriptor:    read,
		Authorization: f.owner.authorize(t, read),
	})
	require.NoError(t, err)

	entry := readReply.(*dispatcher.RecordsReadReply).Entry
	require.NotNil(t, entry)

	_, isDelete := entry.Message.Descriptor.(model.RecordsDelete)
	assert.True(t, isDelete)
}

func TestDispatcherUnpublishedVisibility(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	write := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}
	writeMsg := model.Message{Descriptor: write, Authorization: f.owner.authorize(t, write)}

	reply, err := f.dispatcher.Process(context.Background(), f.owner.did, writeMsg)
	require.NoError(t, err)
	recordID := reply.(*dispatcher.RecordsWriteReply).RecordID

	unauthorizedRead := model.Message{Descriptor: model.RecordsRead{MessageTimestamp: time.Now().UTC(), RecordID: recordID}}

	unauthorizedReply, err := f.dispatcher.Process(context.Background(), f.owner.did, unauthorizedRead)
	require.NoError(t, err)
	assert.Nil(t, unauthorizedReply.(*dispatcher.RecordsReadReply).Entry)

	ownerRead := model.RecordsRead{MessageTimestamp: time.Now().UTC(), RecordID: recordID}

	ownerReply, err := f.dispatcher.Process(context.Background(), f.owner.did, model.Message{
		Descriptor:    ownerRead,
		Authorization: f.owner.authorize(t, ownerRead),
	})
	require.NoError(t, err)
	assert.NotNil(t, ownerReply.(*dispatcher.RecordsReadReply).Entry)
}

type fakeRemote struct {
	manifest []model.LocalRecordRef
	records  map[string]model.Message
}

func (f fakeRemote) Manifest(context.Context) ([]model.LocalRecordRef, error) { return f.manifest, nil }

func (f fakeRemote) Fetch(_ context.Context, recordID string) (model.Message, error) {
	return f.records[recordID], nil
}

func (f fakeRemote) Push(context.Context, string, model.Message) error { return nil }

func TestDispatcherSyncConvergence(t *testing.T) {
	t.Parallel()

	a := newFixture(t)

	writeA := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}
	msgA := model.Message{Descriptor: writeA, Authorization: a.owner.authorize(t, writeA)}

	replyA, err := a.dispatcher.Process(context.Background(), a.owner.did, msgA)
	require.NoError(t, err)
	recordA := replyA.(*dispatcher.RecordsWriteReply)

	localRefs, err := a.records.PrepareSync(context.Background())
	require.NoError(t, err)

	b := newFixture(t)
	b.owner = a.owner // same identity, different replica

	writeB := model.RecordsWrite{MessageTimestamp: time.Now().UTC()}
	msgB := model.Message{Descriptor: writeB, Authorization: a.owner.authorize(t, writeB)}

	replyB, err := b.dispatcher.Process(context.Background(), b.owner.did, msgB)
	require.NoError(t, err)
	recordB := replyB.(*dispatcher.RecordsWriteReply)

	syncReply, err := b.dispatcher.Process(context.Background(), b.owner.did, model.Message{
		Descriptor: model.RecordsSync{MessageTimestamp: time.Now().UTC(), LocalRecords: localRefs},
	})
	require.NoError(t, err)

	reply := syncReply.(*dispatcher.RecordsSyncReply)
	assert.Empty(t, reply.Conflict)
	assert.ElementsMatch(t, []string{recordA.RecordID}, reply.LocalOnly)
	require.Len(t, reply.RemoteOnly, 1)

	remoteStored, err := b.records.Get(context.Background(), recordB.RecordID)
	require.NoError(t, err)

	remoteMsg := remoteStored.Message
	remoteMsg.RecordID = recordB.RecordID

	remote := fakeRemote{records: map[string]model.Message{recordB.RecordID: remoteMsg}}

	err = a.dispatcher.ProcessSyncedRecord(context.Background(), "peer-b", recordB.RecordID, remote)
	require.NoError(t, err)

	_, err = a.records.Get(context.Background(), recordB.RecordID)
	require.NoError(t, err)

	var _ wnsync.RemoteClient = remote
}
