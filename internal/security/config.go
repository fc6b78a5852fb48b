// Package security holds the transport-security material for one
// process as an explicitly constructed, explicitly passed configuration
// object. Nothing here is ambient or global, and everything defaults to
// disabled: the server and client run in the clear unless a caller
// builds an enabled Config and threads it through.
package security

import (
	"crypto/tls"
	"fmt"
	"net"

	"golang.org/x/crypto/bcrypt"
)

// Config is constructed once at startup and passed to whichever side
// needs it. The zero value (and New) disables both TLS and the
// pre-shared secret check.
type Config struct {
	// EnableTLS wraps the transport in TLS when set. Requires TLS
	// material below.
	EnableTLS bool
	// TLS carries certificates and verification settings when
	// EnableTLS is set.
	TLS *tls.Config

	pskHash []byte
}

// New returns a disabled configuration.
func New() *Config {
	return &Config{}
}

// SetPreSharedSecret stores a bcrypt hash of secret for later
// verification. The plaintext is never retained.
func (c *Config) SetPreSharedSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("security: hash secret: %w", err)
	}
	c.pskHash = hash
	return nil
}

// VerifySecret checks secret against the stored hash. A Config with no
// secret configured accepts everything.
func (c *Config) VerifySecret(secret string) bool {
	if len(c.pskHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(c.pskHash, []byte(secret)) == nil
}

// WrapListener returns ln TLS-wrapped when enabled, ln unchanged
// otherwise.
func (c *Config) WrapListener(ln net.Listener) net.Listener {
	if c == nil || !c.EnableTLS || c.TLS == nil {
		return ln
	}
	return tls.NewListener(ln, c.TLS)
}

// WrapConn returns conn TLS-wrapped for the client side when enabled,
// conn unchanged otherwise.
func (c *Config) WrapConn(conn net.Conn) net.Conn {
	if c == nil || !c.EnableTLS || c.TLS == nil {
		return conn
	}
	return tls.Client(conn, c.TLS)
}
