package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnode/dwnd/internal/codec"
)

type sample struct {
	B string `cbor:"b"`
	A string `cbor:"a"`
}

func TestEncodeCanonicalIsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := codec.EncodeCanonical(sample{A: "1", B: "2"})
	require.NoError(t, err)

	b, err := codec.EncodeCanonical(sample{B: "2", A: "1"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCIDIsStableAndContentAddressed(t *testing.T) {
	t.Parallel()

	c1, err := codec.CID(sample{A: "1", B: "2"})
	require.NoError(t, err)

	c2, err := codec.CID(sample{A: "1", B: "2"})
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.True(t, codec.IsValidCID(c1))

	c3, err := codec.CID(sample{A: "1", B: "3"})
	require.NoError(t, err)

	assert.NotEqual(t, c1, c3)
}

func TestEntryIDIsDoubleWrapped(t *testing.T) {
	t.Parallel()

	descriptor := sample{A: "x", B: "y"}

	descriptorCID, err := codec.CID(descriptor)
	require.NoError(t, err)

	entryID, err := codec.EntryID(descriptor)
	require.NoError(t, err)

	expected, err := codec.CID(map[string]string{"descriptorCid": descriptorCID})
	require.NoError(t, err)

	assert.Equal(t, expected, entryID)
	assert.NotEqual(t, descriptorCID, entryID, "entry id must not collapse to the descriptor's own cid")
}

func TestDataCIDStableAndSensitiveToContent(t *testing.T) {
	t.Parallel()

	payload := []byte("test data")

	c1, err := codec.DataCID(payload, codec.ChunkOptions{})
	require.NoError(t, err)

	c2, err := codec.DataCID(payload, codec.ChunkOptions{})
	require.NoError(t, err)

	assert.Equal(t, c1, c2)

	c3, err := codec.DataCID([]byte("different data"), codec.ChunkOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, c1, c3)
}

func TestDataCIDMultiChunkBalancedTree(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 10*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	root, err := codec.DataCID(payload, codec.ChunkOptions{ChunkSize: 1024, Fanout: 4})
	require.NoError(t, err)
	assert.True(t, codec.IsValidCID(root))

	// Tampering with a single byte must change the root.
	tampered := make([]byte, len(payload))
	copy(tampered, payload)
	tampered[5000] ^= 0xFF

	rootTampered, err := codec.DataCID(tampered, codec.ChunkOptions{ChunkSize: 1024, Fanout: 4})
	require.NoError(t, err)
	assert.NotEqual(t, root, rootTampered)
}

func TestMultikeyRoundTrip(t *testing.T) {
	t.Parallel()

	key := make([]byte, 33)
	for i := range key {
		key[i] = byte(i)
	}

	encoded, err := codec.EncodeMultikey(codec.MulticodecP256PubKey, key)
	require.NoError(t, err)

	multicodec, decoded, err := codec.DecodeMultikey(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(codec.MulticodecP256PubKey), multicodec)
	assert.Equal(t, key, decoded)
}
