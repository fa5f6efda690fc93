package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerialize_EmptyMap(t *testing.T) {
	out, err := Serialize(map[string]any{}, DefaultStyle)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSerialize_SortsKeysRecursively(t *testing.T) {
	out, err := Serialize(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"c": true, "a": "x"},
	}, DefaultStyle)
	require.NoError(t, err)
	require.Equal(t, "alpha:\n  a: x\n  c: true\nzebra: 1\n", string(out))
}

func TestSerialize_Sequences(t *testing.T) {
	out, err := Serialize(map[string]any{
		"tags":  []string{"consumer", "provider"},
		"mixed": []any{"a", 2},
	}, DefaultStyle)
	require.NoError(t, err)
	require.Equal(t, "mixed:\n  - a\n  - 2\ntags:\n  - consumer\n  - provider\n", string(out))
}

func TestSerialize_CRLFStyle(t *testing.T) {
	out, err := Serialize(map[string]any{"title": "Guide"}, Style{Newline: "\r\n"})
	require.NoError(t, err)
	require.Equal(t, "title: Guide\r\n", string(out))
}
