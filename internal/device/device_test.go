package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticIdentity(t *testing.T) {
	assert.Equal(t, uint32(12345), StaticIdentity(12345).SerialNumber())
}

func TestRandomIdentityVaries(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 8; i++ {
		seen[NewRandomIdentity().SerialNumber()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestLogIndicator(t *testing.T) {
	ind := NewLogIndicator(zap.NewNop())
	require.NoError(t, ind.Clear())
	require.NoError(t, ind.Clear())
	assert.Equal(t, 2, ind.Clears())
}
