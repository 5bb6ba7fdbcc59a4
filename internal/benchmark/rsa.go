package benchmark

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// rsaProfile encrypts with RSA-OAEP (SHA-256 hash and MGF1). The key pair is
// generated once when the profile is built.
type rsaProfile struct {
	provider Provider
	key      *rsa.PrivateKey
	bits     int
}

func newRSAProfile(provider Provider, bits int) (*rsaProfile, error) {
	key, err := provider.GenerateKeyPair(bits)
	if err != nil {
		return nil, err
	}
	return &rsaProfile{provider: provider, key: key, bits: bits}, nil
}

func (r *rsaProfile) Name() string {
	return fmt.Sprintf("RSA-%d", r.bits)
}

func (r *rsaProfile) Capabilities() Capability {
	return CapEncrypt | CapDecrypt
}

// MaxPlaintext is the largest payload a single OAEP block can carry.
func (r *rsaProfile) MaxPlaintext() int {
	return MaxOAEPPlaintext(&r.key.PublicKey)
}

func (r *rsaProfile) NewContext() (CipherContext, error) {
	if r.key == nil {
		return nil, cryptoFailure(r.Name(), fmt.Errorf("key pair has been destroyed"))
	}
	return &rsaContext{name: r.Name(), provider: r.provider, key: r.key}, nil
}

func (r *rsaProfile) KeyDescription() KeyDescription {
	desc := KeyDescription{Algorithm: "RSA-OAEP-SHA256", Bits: r.bits}
	if r.key != nil {
		if der, err := x509.MarshalPKIXPublicKey(&r.key.PublicKey); err == nil {
			desc.Public = der
		}
	}
	return desc
}

func (r *rsaProfile) Destroy() {
	r.key = nil
}

// rsaContext performs one OAEP operation per call. Oversized payloads are
// rejected, never chunked or truncated.
type rsaContext struct {
	name     string
	provider Provider
	key      *rsa.PrivateKey
}

func (c *rsaContext) Encrypt(plaintext []byte) ([]byte, error) {
	ct, err := c.provider.AsymmetricEncrypt(&c.key.PublicKey, plaintext)
	if err != nil {
		return nil, cryptoFailure(c.name, err)
	}
	return ct, nil
}

func (c *rsaContext) Decrypt(ciphertext []byte) ([]byte, error) {
	pt, err := c.provider.AsymmetricDecrypt(c.key, ciphertext)
	if err != nil {
		return nil, cryptoFailure(c.name, err)
	}
	return pt, nil
}
