package maputils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrVal(t *testing.T) {
	m := map[string]any{"s": "v", "i": 1}

	v, err := StrVal(m, "s")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	v, err = StrVal(m, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = StrVal(m, "i")
	assert.Error(t, err)
}

func TestStrSliceVal(t *testing.T) {
	m := map[string]any{
		"typed":   []string{"a"},
		"untyped": []any{"a", "b"},
		"mixed":   []any{"a", 1},
		"str":     "a",
	}

	v, err := StrSliceVal(m, "typed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	v, err = StrSliceVal(m, "untyped")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	v, err = StrSliceVal(m, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = StrSliceVal(m, "mixed")
	assert.Error(t, err)

	_, err = StrSliceVal(m, "str")
	assert.Error(t, err)
}

func TestMapValAndToStrMap(t *testing.T) {
	m := map[string]any{
		"headers": map[string]any{"Content-Type": "application/json"},
		"bad":     map[string]any{"X": 1},
	}

	headers, err := MapVal(m, "headers")
	require.NoError(t, err)

	strHeaders, err := ToStrMap(headers)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, strHeaders)

	empty, err := MapVal(m, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	bad, err := MapVal(m, "bad")
	require.NoError(t, err)
	_, err = ToStrMap(bad)
	assert.Error(t, err)

	_, err = MapVal(map[string]any{"x": "y"}, "x")
	assert.Error(t, err)
}
