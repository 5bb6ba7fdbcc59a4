package benchmark

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Mode is a block cipher mode of operation.
type Mode string

const (
	ModeCBC Mode = "CBC"
	ModeCFB Mode = "CFB"
	ModeOFB Mode = "OFB"
	ModeCTR Mode = "CTR"
)

// HashAlgorithm names a digest function understood by a Provider.
type HashAlgorithm string

const (
	HashSHA256  HashAlgorithm = "SHA-256"
	HashSHA3256 HashAlgorithm = "SHA3-256"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum OAEP plaintext length")
	ErrInvalidIV       = errors.New("invalid IV length")
	ErrBadCiphertext   = errors.New("ciphertext is not a multiple of the block size")
)

// CipherContext is a single-use encrypt/decrypt context bound to a key, mode
// and IV. Contexts carry no keystream position between calls.
type CipherContext interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Provider is the capability contract the harness consumes. The harness never
// implements cryptography itself.
type Provider interface {
	GenerateSymmetricKey(bits int) ([]byte, error)
	GenerateIV(blockSize int) ([]byte, error)
	BlockCipher(key []byte, mode Mode, iv []byte) (CipherContext, error)
	GenerateKeyPair(bits int) (*rsa.PrivateKey, error)
	AsymmetricEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	AsymmetricDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)
	Hash(data []byte, alg HashAlgorithm) ([]byte, error)
}

// StdProvider implements Provider with the Go standard crypto packages and
// golang.org/x/crypto for SHA-3.
type StdProvider struct{}

func NewStdProvider() *StdProvider {
	return &StdProvider{}
}

func (p *StdProvider) GenerateSymmetricKey(bits int) ([]byte, error) {
	if bits%8 != 0 {
		return nil, fmt.Errorf("key size %d is not a whole number of bytes", bits)
	}
	key := make([]byte, bits/8)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	return key, nil
}

func (p *StdProvider) GenerateIV(blockSize int) ([]byte, error) {
	iv := make([]byte, blockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// BlockCipher expands the key and binds it to mode and IV. The returned
// context builds a new mode instance for every message.
func (p *StdProvider) BlockCipher(key []byte, mode Mode, iv []byte) (CipherContext, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIV, len(iv), block.BlockSize())
	}
	switch mode {
	case ModeCBC, ModeCFB, ModeOFB, ModeCTR:
	default:
		return nil, fmt.Errorf("unsupported block cipher mode: %s", mode)
	}
	return &blockContext{block: block, mode: mode, iv: iv}, nil
}

func (p *StdProvider) GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return key, nil
}

// MaxOAEPPlaintext is the largest message RSA-OAEP with SHA-256 accepts for pub.
func MaxOAEPPlaintext(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

func (p *StdProvider) AsymmetricEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("public key cannot be nil")
	}
	if max := MaxOAEPPlaintext(pub); len(plaintext) > max {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(plaintext), max)
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt data: %w", err)
	}
	return ct, nil
}

func (p *StdProvider) AsymmetricDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("private key cannot be nil")
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return pt, nil
}

func (p *StdProvider) Hash(data []byte, alg HashAlgorithm) ([]byte, error) {
	switch alg {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case HashSHA3256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", alg)
	}
}

type blockContext struct {
	block cipher.Block
	mode  Mode
	iv    []byte
}

func (c *blockContext) Encrypt(plaintext []byte) ([]byte, error) {
	padded := pkcs7Pad(plaintext, c.block.BlockSize())
	out := make([]byte, len(padded))

	// CFB and OFB are deprecated in crypto/cipher; the unauthenticated modes
	// are what is being measured.
	switch c.mode {
	case ModeCBC:
		cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	case ModeCFB:
		cipher.NewCFBEncrypter(c.block, c.iv).XORKeyStream(out, padded)
	case ModeOFB:
		cipher.NewOFB(c.block, c.iv).XORKeyStream(out, padded)
	case ModeCTR:
		cipher.NewCTR(c.block, c.iv).XORKeyStream(out, padded)
	}
	return out, nil
}

func (c *blockContext) Decrypt(ciphertext []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadCiphertext, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))

	switch c.mode {
	case ModeCBC:
		cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, ciphertext)
	case ModeCFB:
		cipher.NewCFBDecrypter(c.block, c.iv).XORKeyStream(out, ciphertext)
	case ModeOFB:
		cipher.NewOFB(c.block, c.iv).XORKeyStream(out, ciphertext)
	case ModeCTR:
		cipher.NewCTR(c.block, c.iv).XORKeyStream(out, ciphertext)
	}
	return pkcs7Unpad(out, bs)
}
