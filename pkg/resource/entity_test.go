package resource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	assert.True(t, ParseID("42").Numeric())
	assert.False(t, ParseID("abc-1").Numeric())
	assert.True(t, ParseID(" 7 ").Equal(IntID(7)))
	assert.True(t, IntID(1).Equal(StringID("1")))
}

func TestDecode_KeepsIDEncoding(t *testing.T) {
	e, err := Decode([]byte(`{"id":7,"name":"X"}`), "")
	require.NoError(t, err)
	assert.True(t, e.ID.Numeric())
	assert.Equal(t, "X", e.String("name"))

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"X"}`, string(out))

	s, err := Decode([]byte(`{"_id":"a1","name":"Y"}`), "_id")
	require.NoError(t, err)
	assert.Equal(t, "a1", s.ID.String())
	assert.False(t, s.ID.Numeric())
	assert.JSONEq(t, `{"_id":"a1","name":"Y"}`, mustMarshal(t, s.Map("_id")))
}

func TestDecode_MissingID(t *testing.T) {
	_, err := Decode([]byte(`{"name":"X"}`), "")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = FromMap(map[string]any{"id": ""}, "")
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestDecodeList(t *testing.T) {
	items, err := DecodeList([]byte(`[{"id":1},{"id":"2"}]`), "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = DecodeList([]byte(`[{"id":1},{"name":"no id"}]`), "")
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestEntity_CloneIsDeep(t *testing.T) {
	e := entity(1, map[string]any{"tags": []any{"a"}, "geo": map[string]any{"lat": 1.0}})
	c := e.Clone()
	c.Fields["tags"].([]any)[0] = "b"
	c.Fields["geo"].(map[string]any)["lat"] = 2.0

	assert.Equal(t, "a", e.Fields["tags"].([]any)[0])
	assert.Equal(t, 1.0, e.Fields["geo"].(map[string]any)["lat"])
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
