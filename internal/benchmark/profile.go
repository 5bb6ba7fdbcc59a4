package benchmark

import (
	"fmt"
	"strings"
)

// Capability is the set of operations a profile exposes.
type Capability uint8

const (
	CapEncrypt Capability = 1 << iota
	CapDecrypt
	CapDigest
)

func (c Capability) Has(o Capability) bool {
	return c&o == o
}

// Profile is one algorithm/mode under test together with its key material.
// Key material is created once when the profile is built and is read-only
// afterwards.
type Profile interface {
	Name() string
	Capabilities() Capability
	// Destroy discards key material. The profile must not be used afterwards.
	Destroy()
}

// CipherProfile hands out a fresh CipherContext for every operation.
type CipherProfile interface {
	Profile
	NewContext() (CipherContext, error)
}

type DigestContext interface {
	Digest(data []byte) ([]byte, error)
}

type HashProfile interface {
	Profile
	NewContext() (DigestContext, error)
}

// KeyDescriber is implemented by profiles that own key material worth
// recording in a run report.
type KeyDescriber interface {
	KeyDescription() KeyDescription
}

// KeyDescription never includes private or secret bytes.
type KeyDescription struct {
	Algorithm string
	Bits      int
	Public    []byte
}

var profileOrder = []string{"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr", "rsa", "sha256", "sha3-256"}

var profileAliases = map[string][]string{
	"aes": {"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr"},
	"all": {"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr", "rsa", "sha256"},
}

var aesModes = map[string]Mode{
	"aes-cbc": ModeCBC,
	"aes-cfb": ModeCFB,
	"aes-ofb": ModeOFB,
	"aes-ctr": ModeCTR,
}

var hashAlgorithms = map[string]HashAlgorithm{
	"sha256":   HashSHA256,
	"sha3-256": HashSHA3256,
}

// AvailableProfiles lists registry names in canonical order.
func AvailableProfiles() []string {
	return append([]string(nil), profileOrder...)
}

// ResolveProfileNames expands aliases and drops duplicates, keeping the
// order in which names first appear.
func ResolveProfileNames(names []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if expanded, ok := profileAliases[name]; ok {
			for _, n := range expanded {
				add(n)
			}
			continue
		}
		if !isKnownProfile(name) {
			return nil, fmt.Errorf("unknown profile: %s", raw)
		}
		add(name)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no profiles selected")
	}
	return out, nil
}

func isKnownProfile(name string) bool {
	for _, n := range profileOrder {
		if n == name {
			return true
		}
	}
	return false
}

// BuildProfiles generates key material once per run: a single AES key and IV
// shared by every AES mode, and a single RSA key pair.
func BuildProfiles(cfg Config, provider Provider) ([]Profile, error) {
	names, err := ResolveProfileNames(cfg.Profiles)
	if err != nil {
		return nil, &Error{Kind: KindInvalidConfig, Stage: StateIdle, Cause: err}
	}

	var (
		profiles []Profile
		aesKey   []byte
		aesIV    []byte
	)

	fail := func(name string, err error) ([]Profile, error) {
		for _, p := range profiles {
			p.Destroy()
		}
		return nil, &Error{Kind: KindCryptoFailure, Stage: StateIdle, Profile: name, Message: "key generation failed", Cause: err}
	}

	for _, name := range names {
		switch {
		case aesModes[name] != "":
			if aesKey == nil {
				if aesKey, err = provider.GenerateSymmetricKey(cfg.AESKeyBits); err != nil {
					return fail(name, err)
				}
				if aesIV, err = provider.GenerateIV(aesBlockSize); err != nil {
					return fail(name, err)
				}
			}
			profiles = append(profiles, newSymmetricProfile(provider, aesModes[name], aesKey, aesIV))

		case name == "rsa":
			p, err := newRSAProfile(provider, cfg.RSAKeyBits)
			if err != nil {
				return fail(name, err)
			}
			profiles = append(profiles, p)

		case hashAlgorithms[name] != "":
			profiles = append(profiles, newHashProfile(provider, hashAlgorithms[name]))
		}
	}

	return profiles, nil
}
