package security

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySecret(t *testing.T) {
	c := New()

	// No secret configured: everything passes.
	assert.True(t, c.VerifySecret("anything"))

	require.NoError(t, c.SetPreSharedSecret("correct horse"))
	assert.True(t, c.VerifySecret("correct horse"))
	assert.False(t, c.VerifySecret("wrong"))
}

func TestDisabledConfigIsPassthrough(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := New()
	assert.Equal(t, ln, c.WrapListener(ln))

	var nilCfg *Config
	assert.Equal(t, ln, nilCfg.WrapListener(ln))
}
