package disk

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
)

// Row prefixes. Every row of the store lives in a single bucket; the first
// byte of the key says what the row is.
const (
	prefixVertex         byte = 0x01 // id -> type
	prefixEdge           byte = 0x02 // out type 0x00 in -> timestamp
	prefixReverseEdge    byte = 0x03 // in type 0x00 out -> timestamp
	prefixVertexProperty byte = 0x04 // id name -> json
	prefixEdgeProperty   byte = 0x05 // out type 0x00 in name -> json
	prefixVertexIndex    byte = 0x06 // name 0x00 value id
	prefixEdgeIndex      byte = 0x07 // name 0x00 value out type 0x00 in
)

// Values longer than maxInlineValue are indexed by their SHA-256.
const maxInlineValue = 512

const (
	inlineValue byte = 0x00
	hashedValue byte = 0x01
)

const idLen = 16

var errCorruptRow = errors.New("corrupt row")

func corrupt(what string, key []byte) error {
	return graph.NewStorageError("decode", fmt.Errorf("%w: %s key %x", errCorruptRow, what, key))
}

func vertexKey(id uuid.UUID) []byte {
	return append([]byte{prefixVertex}, id[:]...)
}

func appendEdgeKey(dst []byte, k graph.EdgeKey) []byte {
	dst = append(dst, k.OutboundID[:]...)
	dst = append(dst, k.Type.String()...)
	dst = append(dst, 0x00)
	return append(dst, k.InboundID[:]...)
}

func edgeKey(k graph.EdgeKey) []byte {
	return appendEdgeKey([]byte{prefixEdge}, k)
}

// reverseEdgeKey is keyed by the inbound vertex first.
func reverseEdgeKey(k graph.EdgeKey) []byte {
	return appendEdgeKey([]byte{prefixReverseEdge}, k.Reversed())
}

// adjacencyPrefix selects the edges of id in one direction, optionally of a
// single type.
func adjacencyPrefix(id uuid.UUID, dir graph.Direction, t *graph.Identifier) []byte {
	p := prefixEdge
	if dir == graph.Inbound {
		p = prefixReverseEdge
	}
	key := append([]byte{p}, id[:]...)
	if t != nil {
		key = append(key, t.String()...)
		key = append(key, 0x00)
	}
	return key
}

// decodeEdgeKey parses "out type 0x00 in" occupying all of b.
func decodeEdgeKey(b []byte) (graph.EdgeKey, bool) {
	if len(b) < 2*idLen+2 || b[len(b)-idLen-1] != 0x00 {
		return graph.EdgeKey{}, false
	}
	t, err := graph.NewIdentifier(string(b[idLen : len(b)-idLen-1]))
	if err != nil {
		return graph.EdgeKey{}, false
	}
	var k graph.EdgeKey
	copy(k.OutboundID[:], b[:idLen])
	copy(k.InboundID[:], b[len(b)-idLen:])
	k.Type = t
	return k, true
}

func vertexPropertyPrefix(id uuid.UUID) []byte {
	return append([]byte{prefixVertexProperty}, id[:]...)
}

func vertexPropertyKey(id uuid.UUID, name string) []byte {
	return append(vertexPropertyPrefix(id), name...)
}

func edgePropertyPrefix(k graph.EdgeKey) []byte {
	return appendEdgeKey([]byte{prefixEdgeProperty}, k)
}

func edgePropertyKey(k graph.EdgeKey, name string) []byte {
	return append(edgePropertyPrefix(k), name...)
}

// appendIndexValue writes the index form of v: short values inline between
// marker and terminator, long ones as a digest.
func appendIndexValue(dst []byte, v graph.Value) []byte {
	if len(v) <= maxInlineValue {
		dst = append(dst, inlineValue)
		dst = append(dst, v...)
		return append(dst, 0x00)
	}
	sum := sha256.Sum256(v)
	dst = append(dst, hashedValue)
	return append(dst, sum[:]...)
}

// skipIndexValue returns what follows the encoded value at the start of b.
// Canonical JSON never contains a raw 0x00, so the terminator is unambiguous.
func skipIndexValue(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	switch b[0] {
	case inlineValue:
		end := bytes.IndexByte(b[1:], 0x00)
		if end < 0 {
			return nil, false
		}
		return b[end+2:], true
	case hashedValue:
		if len(b) < 1+sha256.Size {
			return nil, false
		}
		return b[1+sha256.Size:], true
	default:
		return nil, false
	}
}

// indexPrefix selects the index rows of property name, and of one value when
// value is non-nil.
func indexPrefix(p byte, name string, value graph.Value) []byte {
	key := append([]byte{p}, name...)
	key = append(key, 0x00)
	if value != nil {
		key = appendIndexValue(key, value)
	}
	return key
}

func vertexIndexKey(name string, value graph.Value, id uuid.UUID) []byte {
	return append(indexPrefix(prefixVertexIndex, name, value), id[:]...)
}

func edgeIndexKey(name string, value graph.Value, k graph.EdgeKey) []byte {
	return appendEdgeKey(indexPrefix(prefixEdgeIndex, name, value), k)
}

// indexOwner strips the name prefix and the encoded value from an index key,
// leaving the owner's bytes.
func indexOwner(key []byte, namePrefixLen int) ([]byte, bool) {
	if len(key) < namePrefixLen {
		return nil, false
	}
	return skipIndexValue(key[namePrefixLen:])
}

func encodeTimestamp(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano()))
	return b[:]
}

func decodeTimestamp(b []byte) (time.Time, bool) {
	if len(b) != 8 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC(), true
}
