package disk

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeKeyRoundTrip(t *testing.T) {
	key := graph.NewEdgeKey(uuid.New(), graph.MustIdentifier("likes"), uuid.New())

	raw := edgeKey(key)
	assert.Equal(t, prefixEdge, raw[0])
	got, ok := decodeEdgeKey(raw[1:])
	require.True(t, ok)
	assert.Equal(t, key, got)

	rev := reverseEdgeKey(key)
	assert.Equal(t, prefixReverseEdge, rev[0])
	got, ok = decodeEdgeKey(rev[1:])
	require.True(t, ok)
	assert.Equal(t, key.Reversed(), got)
}

func TestDecodeEdgeKeyRejectsGarbage(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		make([]byte, 33),
		append(append(make([]byte, 16), "x!"...), make([]byte, 17)...),
		append(append(make([]byte, 16), "likes"...), make([]byte, 16)...),
	} {
		_, ok := decodeEdgeKey(b)
		assert.False(t, ok, "%x", b)
	}
}

// Byte order of encoded keys must match graph.EdgeKey.Compare, including
// types that are prefixes of each other.
func TestEdgeKeyOrdering(t *testing.T) {
	a, b := uuid.MustParse("00000000-0000-0000-0000-000000000001"), uuid.MustParse("00000000-0000-0000-0000-000000000002")
	keys := []graph.EdgeKey{
		graph.NewEdgeKey(b, graph.MustIdentifier("a"), a),
		graph.NewEdgeKey(a, graph.MustIdentifier("ab"), a),
		graph.NewEdgeKey(a, graph.MustIdentifier("a"), b),
		graph.NewEdgeKey(a, graph.MustIdentifier("a"), a),
		graph.NewEdgeKey(a, graph.MustIdentifier("B"), b),
	}

	byKey := slices.Clone(keys)
	slices.SortFunc(byKey, graph.EdgeKey.Compare)
	byBytes := slices.Clone(keys)
	slices.SortFunc(byBytes, func(x, y graph.EdgeKey) int {
		return bytes.Compare(edgeKey(x), edgeKey(y))
	})
	assert.Equal(t, byKey, byBytes)
}

func TestIndexValueEncoding(t *testing.T) {
	short := graph.MustValue("abc")
	enc := appendIndexValue(nil, short)
	assert.Equal(t, inlineValue, enc[0])
	rest, ok := skipIndexValue(append(enc, 'X'))
	require.True(t, ok)
	assert.Equal(t, []byte("X"), rest)

	long := graph.MustValue(strings.Repeat("z", maxInlineValue))
	enc = appendIndexValue(nil, long)
	assert.Equal(t, hashedValue, enc[0])
	assert.Len(t, enc, 33)
	rest, ok = skipIndexValue(append(enc, 'Y'))
	require.True(t, ok)
	assert.Equal(t, []byte("Y"), rest)

	// "1" must not be a prefix match for "10".
	one := indexPrefix(prefixVertexIndex, "n", graph.MustValue(1))
	ten := vertexIndexKey("n", graph.MustValue(10), uuid.New())
	assert.False(t, bytes.HasPrefix(ten, one))

	_, ok = skipIndexValue([]byte{inlineValue, '1'})
	assert.False(t, ok)
	_, ok = skipIndexValue([]byte{0x09})
	assert.False(t, ok)
}

func TestIndexOwner(t *testing.T) {
	id := uuid.New()
	key := vertexIndexKey("age", graph.MustValue(42), id)
	owner, ok := indexOwner(key, len(indexPrefix(prefixVertexIndex, "age", nil)))
	require.True(t, ok)
	assert.Equal(t, id[:], owner)

	edge := graph.NewEdgeKey(uuid.New(), graph.MustIdentifier("likes"), uuid.New())
	ekey := edgeIndexKey("w", graph.MustValue([]int{1, 2}), edge)
	owner, ok = indexOwner(ekey, len(indexPrefix(prefixEdgeIndex, "w", nil)))
	require.True(t, ok)
	got, ok := decodeEdgeKey(owner)
	require.True(t, ok)
	assert.Equal(t, edge, got)
}

func TestTimestampEncoding(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	got, ok := decodeTimestamp(encodeTimestamp(ts))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	_, ok = decodeTimestamp([]byte{1, 2})
	assert.False(t, ok)
}
