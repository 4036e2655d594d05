package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate(PrefixCollection)
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"collection", PrefixCollection},
		{"workspace", PrefixWorkspace},
		{"client", PrefixClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Generate(tt.prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, tt.prefix+"-"))

			// NanoID default is 21 characters
			nanoidPart := strings.TrimPrefix(id, tt.prefix+"-")
			assert.Len(t, nanoidPart, 21)
		})
	}
}

func TestMustGenerate_Format(t *testing.T) {
	id := MustGenerate("test")

	assert.True(t, strings.HasPrefix(id, "test-"))
	assert.Equal(t, len("test")+1+21, len(id))
}

func TestNewEntityID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewEntityID()
		require.NoError(t, err)
		assert.True(t, IsUUID(id), id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("2f1b7d0e-8a57-4e8e-9d5c-6f1a2b3c4d5e"))
	assert.False(t, IsUUID("coll-abc"))
	assert.False(t, IsUUID(""))
}

func TestNamedEntityID(t *testing.T) {
	a := NamedEntityID("ws-1", "ranasjo")
	assert.Equal(t, a, NamedEntityID("ws-1", "ranasjo"))
	assert.NotEqual(t, a, NamedEntityID("ws-2", "ranasjo"))
	assert.True(t, IsUUID(a))
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Generate("bench")
	}
}
