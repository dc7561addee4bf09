package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsAgreeOnIDTable(t *testing.T) {
	table := []string{"batch-1-0", "batch-1-1", "batch-2-0"}

	a, err := JSON{}.Marshal(table)
	require.NoError(t, err)
	b, err := GoJSON{}.Marshal(table)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var got []string
	require.NoError(t, GoJSON{}.Unmarshal(a, &got))
	assert.Equal(t, table, got)
}

func TestDefaultIsGoJSON(t *testing.T) {
	assert.Equal(t, "go-json", Default.Name())

	b, err := Default.Marshal(map[string]int{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(b))
}
