// Package signing owns the process's token-signing key material. The key
// source is resolved exactly once at startup and is read-only afterwards, so
// it is safely shared across concurrent requests without synchronization.
package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
)

const rsaKeyBits = 2048

// KeySource holds the single active signing key for the process lifetime.
// Rotation is achieved by replacing the key files and restarting.
type KeySource struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewEphemeral generates an in-memory RSA key pair. Intended for development
// only: every restart invalidates previously issued tokens.
func NewEphemeral() (*KeySource, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return newKeySource(key)
}

// NewPersisted loads a certificate and private key from the given PEM files.
// Missing, unreadable, or mismatched files are a startup failure; the
// process must not serve tokens it cannot later prove.
func NewPersisted(certFile, keyFile string) (*KeySource, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key pair: %w", err)
	}
	key, ok := pair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("load signing key pair: not an RSA key")
	}
	return newKeySource(key)
}

func newKeySource(key *rsa.PrivateKey) (*KeySource, error) {
	kid, err := fingerprint(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeySource{keyID: kid, key: key}, nil
}

// KeyID returns the active key's identifier, embedded in every token header
// so verifiers can select the matching JWKS entry.
func (s *KeySource) KeyID() string { return s.keyID }

// Signer returns the active private key.
func (s *KeySource) Signer() *rsa.PrivateKey { return s.key }

// Public returns the active public key for local token validation.
func (s *KeySource) Public() *rsa.PublicKey { return &s.key.PublicKey }

// JWK is a single RFC 7517 key entry.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the document served at the JWKS endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS exposes the verification material for the active key. Exactly one key
// per process.
func (s *KeySource) JWKS() JWKSet {
	pub := s.Public()
	return JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: s.keyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}

// fingerprint derives a deterministic key id from the public key so the same
// persisted key keeps the same id across restarts.
func fingerprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("fingerprint signing key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}
