package benchmark

import (
	"bytes"
	"crypto/rsa"
	"errors"
	"testing"
)

func TestResolveProfileNames(t *testing.T) {
	tests := []struct {
		input     []string
		expected  []string
		expectErr bool
	}{
		{[]string{"aes-cbc"}, []string{"aes-cbc"}, false},
		{[]string{"AES"}, []string{"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr"}, false},
		{[]string{"all"}, []string{"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr", "rsa", "sha256"}, false},
		{[]string{"sha256", "aes-ctr", "sha256"}, []string{"sha256", "aes-ctr"}, false},
		{[]string{"all", "sha3-256"}, []string{"aes-cbc", "aes-cfb", "aes-ofb", "aes-ctr", "rsa", "sha256", "sha3-256"}, false},
		{[]string{"des"}, nil, true},
		{[]string{}, nil, true},
	}

	for _, test := range tests {
		got, err := ResolveProfileNames(test.input)
		if test.expectErr {
			if err == nil {
				t.Errorf("Expected error for %v", test.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %v: %v", test.input, err)
			continue
		}
		if len(got) != len(test.expected) {
			t.Errorf("For %v expected %v, got %v", test.input, test.expected, got)
			continue
		}
		for i := range got {
			if got[i] != test.expected[i] {
				t.Errorf("For %v expected %v, got %v", test.input, test.expected, got)
				break
			}
		}
	}
}

func TestBuildProfilesSharesSymmetricKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"aes", "sha256"}

	profiles, err := BuildProfiles(cfg, NewStdProvider())
	if err != nil {
		t.Fatalf("BuildProfiles failed: %v", err)
	}

	expectedNames := []string{"AES-256-CBC", "AES-256-CFB", "AES-256-OFB", "AES-256-CTR", "SHA-256"}
	if len(profiles) != len(expectedNames) {
		t.Fatalf("Expected %d profiles, got %d", len(expectedNames), len(profiles))
	}
	for i, p := range profiles {
		if p.Name() != expectedNames[i] {
			t.Errorf("Expected profile %s, got %s", expectedNames[i], p.Name())
		}
	}

	first := profiles[0].(*symmetricProfile)
	for _, p := range profiles[1:4] {
		sp := p.(*symmetricProfile)
		if !bytes.Equal(sp.key, first.key) || !bytes.Equal(sp.iv, first.iv) {
			t.Errorf("%s does not share the run key and IV", sp.Name())
		}
	}

	if !profiles[0].Capabilities().Has(CapEncrypt | CapDecrypt) {
		t.Error("AES profile should encrypt and decrypt")
	}
	if profiles[0].Capabilities().Has(CapDigest) {
		t.Error("AES profile should not digest")
	}
	if !profiles[4].Capabilities().Has(CapDigest) {
		t.Error("hash profile should digest")
	}
}

func TestSymmetricProfileKeySize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"aes-ofb"}
	cfg.AESKeyBits = 128

	profiles, err := BuildProfiles(cfg, NewStdProvider())
	if err != nil {
		t.Fatalf("BuildProfiles failed: %v", err)
	}
	if profiles[0].Name() != "AES-128-OFB" {
		t.Errorf("Expected AES-128-OFB, got %s", profiles[0].Name())
	}
	desc := profiles[0].(KeyDescriber).KeyDescription()
	if desc.Bits != 128 || desc.Public != nil {
		t.Errorf("Unexpected key description %+v", desc)
	}
}

func TestSymmetricProfileDestroyZeroesKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"aes-cbc"}

	profiles, err := BuildProfiles(cfg, NewStdProvider())
	if err != nil {
		t.Fatalf("BuildProfiles failed: %v", err)
	}
	sp := profiles[0].(*symmetricProfile)
	sp.Destroy()
	for _, b := range sp.key {
		if b != 0 {
			t.Fatal("key bytes not zeroed")
		}
	}
}

func TestRSAProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"rsa"}

	profiles, err := BuildProfiles(cfg, NewStdProvider())
	if err != nil {
		t.Fatalf("BuildProfiles failed: %v", err)
	}
	rp := profiles[0].(*rsaProfile)

	if rp.Name() != "RSA-2048" {
		t.Errorf("Expected RSA-2048, got %s", rp.Name())
	}
	if rp.MaxPlaintext() != 190 {
		t.Errorf("Expected 190 byte limit, got %d", rp.MaxPlaintext())
	}

	desc := rp.KeyDescription()
	if desc.Algorithm != "RSA-OAEP-SHA256" || len(desc.Public) == 0 {
		t.Errorf("Unexpected key description %+v", desc)
	}

	ctx, err := rp.NewContext()
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	ct, err := ctx.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	pt, err := ctx.Decrypt(ct)
	if err != nil || string(pt) != "hello" {
		t.Errorf("Round trip failed: %q %v", pt, err)
	}

	_, err = ctx.Encrypt(make([]byte, 191))
	if !IsKind(err, KindCryptoFailure) || !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected CryptoFailure wrapping ErrPayloadTooLarge, got %v", err)
	}

	rp.Destroy()
	if _, err := rp.NewContext(); !IsKind(err, KindCryptoFailure) {
		t.Errorf("Expected CryptoFailure after Destroy, got %v", err)
	}
}

type failingKeyProvider struct {
	*StdProvider
}

func (f *failingKeyProvider) GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	return nil, errors.New("entropy exhausted")
}

func TestBuildProfilesKeyGenerationFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"aes-cbc", "rsa"}

	_, err := BuildProfiles(cfg, &failingKeyProvider{NewStdProvider()})
	be, ok := AsError(err)
	if !ok || be.Kind != KindCryptoFailure {
		t.Fatalf("Expected CryptoFailure, got %v", err)
	}
	if be.Profile != "rsa" || be.Stage != StateIdle {
		t.Errorf("Unexpected error context %v", be)
	}
}

func TestBuildProfilesUnknownName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"blowfish"}

	if _, err := BuildProfiles(cfg, NewStdProvider()); !IsKind(err, KindInvalidConfig) {
		t.Errorf("Expected InvalidConfig, got %v", err)
	}
}

func TestHashProfileFreshContexts(t *testing.T) {
	h := newHashProfile(NewStdProvider(), HashSHA256)
	a, _ := h.NewContext()
	b, _ := h.NewContext()

	da, err := a.Digest([]byte("payload"))
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	db, _ := b.Digest([]byte("payload"))
	again, _ := a.Digest([]byte("payload"))

	if !VerifyDeterminism(da, db) || !VerifyDeterminism(da, again) {
		t.Error("digests differ across contexts or calls")
	}

	bad := newHashProfile(NewStdProvider(), HashAlgorithm("MD4"))
	ctx, _ := bad.NewContext()
	if _, err := ctx.Digest(nil); !IsKind(err, KindCryptoFailure) {
		t.Errorf("Expected CryptoFailure, got %v", err)
	}
}

func TestAvailableProfiles(t *testing.T) {
	names := AvailableProfiles()
	if len(names) != 7 {
		t.Errorf("Expected 7 profiles, got %d", len(names))
	}
	names[0] = "mutated"
	if AvailableProfiles()[0] != "aes-cbc" {
		t.Error("AvailableProfiles must return a copy")
	}
}
