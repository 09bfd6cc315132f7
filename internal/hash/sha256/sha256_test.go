package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIsStableHexDigest(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)

	again, err := h.Hash([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, got, again)

	other, err := h.Hash([]byte("hello!"))
	require.NoError(t, err)
	require.NotEqual(t, got, other)
}
