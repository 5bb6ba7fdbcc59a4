package benchmark

type hashProfile struct {
	provider Provider
	alg      HashAlgorithm
}

func newHashProfile(provider Provider, alg HashAlgorithm) *hashProfile {
	return &hashProfile{provider: provider, alg: alg}
}

func (h *hashProfile) Name() string {
	return string(h.alg)
}

func (h *hashProfile) Capabilities() Capability {
	return CapDigest
}

func (h *hashProfile) NewContext() (DigestContext, error) {
	return &digestContext{profile: h}, nil
}

// Destroy is a no-op: hash profiles hold no key material.
func (h *hashProfile) Destroy() {}

type digestContext struct {
	profile *hashProfile
}

func (d *digestContext) Digest(data []byte) ([]byte, error) {
	sum, err := d.profile.provider.Hash(data, d.profile.alg)
	if err != nil {
		return nil, cryptoFailure(d.profile.Name(), err)
	}
	return sum, nil
}
