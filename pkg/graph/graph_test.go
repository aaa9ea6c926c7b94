package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentifier(t *testing.T) {
	for _, s := range []string{"user", "likes", "a-b_c", "X9", strings.Repeat("a", MaxIdentifierLength)} {
		id, err := NewIdentifier(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, id.String())
	}

	for _, s := range []string{"", "has space", "dot.ted", "ünicode", strings.Repeat("a", MaxIdentifierLength+1)} {
		_, err := NewIdentifier(s)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%q should be rejected", s)
		assert.Equal(t, s, verr.Value)
	}
}

func TestIdentifierZeroValue(t *testing.T) {
	var id Identifier
	assert.True(t, id.IsZero())
	assert.Error(t, id.Valid())

	_, err := id.MarshalText()
	assert.Error(t, err)

	require.NoError(t, id.UnmarshalText([]byte("movie")))
	assert.Equal(t, MustIdentifier("movie"), id)
	assert.Error(t, id.UnmarshalText([]byte("not valid")))
}

func TestNextID(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	next, err := NextID(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000100"), next)
	assert.Equal(t, -1, CompareIDs(id, next))

	_, err = NextID(uuid.Max)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestNewIDIsTimeOrdered(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		require.Equal(t, -1, CompareIDs(prev, next))
		prev = next
	}
}

func TestEdgeKeyCompare(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	keys := []EdgeKey{
		NewEdgeKey(a, MustIdentifier("ab"), b),
		NewEdgeKey(a, MustIdentifier("a"), b),
		NewEdgeKey(b, MustIdentifier("a"), a),
		NewEdgeKey(a, MustIdentifier("a"), a),
	}
	assert.Equal(t, 1, keys[0].Compare(keys[1]), "type compares as a string")
	assert.Equal(t, -1, keys[1].Compare(keys[2]), "outbound id dominates")
	assert.Equal(t, -1, keys[3].Compare(keys[1]), "inbound id breaks ties")
	assert.Equal(t, 0, keys[0].Compare(keys[0]))

	k := keys[2]
	assert.Equal(t, NewEdgeKey(a, MustIdentifier("a"), b), k.Reversed())
	assert.Equal(t, b, k.Endpoint(Outbound))
	assert.Equal(t, a, k.Endpoint(Inbound))
	assert.Equal(t, Inbound, Outbound.Reverse())
}

func TestValueCanonicalization(t *testing.T) {
	a, err := ParseValue([]byte(`{ "b": 1, "a": [true, null, "x"] }`))
	require.NoError(t, err)
	b := MustValue(map[string]any{"a": []any{true, nil, "x"}, "b": 1})
	assert.True(t, a.Equal(b))
	assert.Equal(t, `{"a":[true,null,"x"],"b":1}`, a.String())

	big, err := ParseValue([]byte(`12345678901234567890`))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", big.String())

	var decoded map[string]any
	require.NoError(t, a.Decode(&decoded))
	assert.Equal(t, float64(1), decoded["b"])
}

func TestValueRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{``, `{`, `1 2`, `{"a":}`} {
		_, err := ParseValue([]byte(raw))
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, raw)
	}
	assert.Error(t, Value(nil).Valid())
}

func TestValueValidRequiresCanonicalJSON(t *testing.T) {
	for _, raw := range []string{"x\x00", "not json\x00x", `{"b":1,"a":2}`, `[1, 2]`, `"a" `} {
		var verr *ValidationError
		assert.ErrorAs(t, Value(raw).Valid(), &verr, "%q", raw)
	}
	assert.NoError(t, MustValue(map[string]any{"b": 1, "a": "\x00"}).Valid())
	assert.NoError(t, Value(`{"a":2,"b":1}`).Valid())
}

func TestStorageErrorWrapping(t *testing.T) {
	base := errors.New("disk on fire")
	err := NewStorageError("scan", base)
	assert.ErrorIs(t, err, base)

	again := NewStorageError("other", err)
	var se *StorageError
	require.ErrorAs(t, again, &se)
	assert.Equal(t, "scan", se.Op)
	assert.Nil(t, NewStorageError("noop", nil))
}
