package benchmark

import "fmt"

const aesBlockSize = 16

// symmetricProfile is one AES mode. Several modes share the same key and IV
// slices; none of them writes to those slices.
type symmetricProfile struct {
	provider Provider
	mode     Mode
	key      []byte
	iv       []byte
}

func newSymmetricProfile(provider Provider, mode Mode, key, iv []byte) *symmetricProfile {
	return &symmetricProfile{provider: provider, mode: mode, key: key, iv: iv}
}

func (s *symmetricProfile) Name() string {
	return fmt.Sprintf("AES-%d-%s", len(s.key)*8, s.mode)
}

func (s *symmetricProfile) Capabilities() Capability {
	return CapEncrypt | CapDecrypt
}

// NewContext expands the key and builds a context that creates its mode
// instance per message, so no keystream position survives between calls.
func (s *symmetricProfile) NewContext() (CipherContext, error) {
	ctx, err := s.provider.BlockCipher(s.key, s.mode, s.iv)
	if err != nil {
		return nil, cryptoFailure(s.Name(), err)
	}
	return &wrappedCipher{name: s.Name(), inner: ctx}, nil
}

func (s *symmetricProfile) KeyDescription() KeyDescription {
	return KeyDescription{Algorithm: "AES-" + string(s.mode), Bits: len(s.key) * 8}
}

func (s *symmetricProfile) Destroy() {
	for i := range s.key {
		s.key[i] = 0
	}
}

// wrappedCipher maps provider errors to CryptoFailure.
type wrappedCipher struct {
	name  string
	inner CipherContext
}

func (w *wrappedCipher) Encrypt(plaintext []byte) ([]byte, error) {
	out, err := w.inner.Encrypt(plaintext)
	if err != nil {
		return nil, cryptoFailure(w.name, err)
	}
	return out, nil
}

func (w *wrappedCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	out, err := w.inner.Decrypt(ciphertext)
	if err != nil {
		return nil, cryptoFailure(w.name, err)
	}
	return out, nil
}
