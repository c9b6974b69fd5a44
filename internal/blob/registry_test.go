package blob

import (
	"errors"
	"testing"

	"github.com/ericthayer/devlog/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()

	url := r.Put([]byte("payload"), "image/png")
	assert.True(t, IsTransient(url))

	data, contentType, err := r.Get(url)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, "image/png", contentType)
}

func TestRegistryDistinctURLs(t *testing.T) {
	r := NewRegistry()
	a := r.Put([]byte("a"), "")
	b := r.Put([]byte("b"), "")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRevoke(t *testing.T) {
	r := NewRegistry()
	url := r.Put([]byte("x"), "")

	r.Revoke(url)
	_, _, err := r.Get(url)
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	r.Revoke(url)
	assert.Equal(t, 0, r.Len())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient("local://abc123def"))
	assert.False(t, IsTransient("https://cdn.example.com/a/b.png"))
	assert.False(t, IsTransient(""))
}
