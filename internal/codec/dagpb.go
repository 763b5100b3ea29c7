package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// DagPBCodec is the multicodec tag for DAG-PB encoded data (0x70).
const DagPBCodec = 0x70

// DefaultChunkSize and DefaultFanout are used by DataCID when a caller
// does not override them via ChunkOptions.
const (
	DefaultChunkSize = 256 * 1024
	DefaultFanout    = 174
)

// ChunkOptions controls the UnixFS-style file adder used by DataCID.
type ChunkOptions struct {
	// ChunkSize is the size of each fixed-size leaf chunk, in bytes.
	ChunkSize int
	// Fanout is the maximum number of child links per intermediate node.
	Fanout int
}

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}

	if o.Fanout <= 0 {
		o.Fanout = DefaultFanout
	}

	return o
}

// pbLink is a single link of a DAG-PB node: the child's CID, an
// optional name (always empty here — this adder is unnamed, like
// UnixFS's raw balanced layout), and the child's encoded byte size.
type pbLink struct {
	hash  gocid.Cid
	tsize uint64
}

// encodePBNode serializes a DAG-PB node (public, stable wire format:
// field 1 = Data bytes, field 2 = repeated Link message {1: Hash
// bytes, 3: Tsize varint}) by hand. The format is simple enough
// (two top-level fields) that hand-writing the protobuf wire bytes is
// clearer than pulling in a full codec dependency for it — see
// DESIGN.md for why the DAG-PB tree builder is hand-rolled.
func encodePBNode(data []byte, links []pbLink) []byte {
	var buf []byte

	for _, l := range links {
		var linkBuf []byte
		linkBuf = appendTaggedBytes(linkBuf, 1, l.hash.Bytes())
		linkBuf = appendTaggedVarint(linkBuf, 3, l.tsize)

		buf = appendTaggedBytes(buf, 2, linkBuf)
	}

	if len(data) > 0 {
		buf = appendTaggedBytes(buf, 1, data)
	}

	return buf
}

func appendTaggedVarint(buf []byte, field int, v uint64) []byte {
	buf = appendVarint(buf, uint64(field)<<3|0)

	return appendVarint(buf, v)
}

func appendTaggedBytes(buf []byte, field int, v []byte) []byte {
	buf = appendVarint(buf, uint64(field)<<3|2)
	buf = appendVarint(buf, uint64(len(v)))

	return append(buf, v...)
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], v)

	return append(buf, tmp[:n]...)
}

// cidOfPBNode hashes encoded DAG-PB node bytes into a CIDv1 tagged with the DAG-PB codec.
func cidOfPBNode(encoded []byte) (gocid.Cid, error) {
	sum := sha256.Sum256(encoded)

	mhash, err := mh.Encode(sum[:], mh.SHA2_256)
	if err != nil {
		return gocid.Undef, fmt.Errorf("codec: failed to build multihash: %w", err)
	}

	return gocid.NewCidV1(DagPBCodec, mhash), nil
}

// DataCID chunks data into fixed-size leaves, arranges them into a
// balanced tree of DAG-PB link nodes (UnixFS's balanced layout,
// generalized to unnamed links), and returns the stringified root CID.
func DataCID(data []byte, opts ChunkOptions) (string, error) {
	opts = opts.withDefaults()

	if len(data) == 0 {
		root, err := cidOfPBNode(encodePBNode(nil, nil))
		if err != nil {
			return "", err
		}

		return root.String(), nil
	}

	level, err := leafLevel(data, opts.ChunkSize)
	if err != nil {
		return "", err
	}

	for len(level) > 1 {
		level, err = parentLevel(level, opts.Fanout)
		if err != nil {
			return "", err
		}
	}

	return level[0].hash.String(), nil
}

type treeNode struct {
	hash gocid.Cid
	size uint64
}

func leafLevel(data []byte, chunkSize int) ([]treeNode, error) {
	nodes := make([]treeNode, 0, (len(data)+chunkSize-1)/chunkSize)

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}

		chunk := data[offset:end]

		encoded := encodePBNode(chunk, nil)

		cid, err := cidOfPBNode(encoded)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, treeNode{hash: cid, size: uint64(len(encoded))})
	}

	return nodes, nil
}

func parentLevel(children []treeNode, fanout int) ([]treeNode, error) {
	parents := make([]treeNode, 0, (len(children)+fanout-1)/fanout)

	for offset := 0; offset < len(children); offset += fanout {
		end := offset + fanout
		if end > len(children) {
			end = len(children)
		}

		group := children[offset:end]

		links := make([]pbLink, len(group))

		var totalSize uint64

		for i, child := range group {
			links[i] = pbLink{hash: child.hash, tsize: child.size}
			totalSize += child.size
		}

		encoded := encodePBNode(nil, links)

		cid, err := cidOfPBNode(encoded)
		if err != nil {
			return nil, err
		}

		parents = append(parents, treeNode{hash: cid, size: totalSize + uint64(len(encoded))})
	}

	return parents, nil
}
