package benchmark

// Operation names a timed step within one iteration.
type Operation string

const (
	OpEncrypt Operation = "encrypt"
	OpDecrypt Operation = "decrypt"
	OpDigest  Operation = "hash"
	OpVerify  Operation = "verify"
)

// Sample is one accepted iteration. Times are in microseconds; which fields
// are meaningful depends on Kind.
type Sample struct {
	Profile    string     `json:"profile"`
	Kind       Capability `json:"kind"`
	FileSize   int        `json:"file_size_bytes"`
	Generation int        `json:"generation"`
	Iteration  int        `json:"iteration"`
	Encrypt    float64    `json:"encryption_time_us,omitempty"`
	Decrypt    float64    `json:"decryption_time_us,omitempty"`
	Digest     float64    `json:"hash_time_us,omitempty"`
	Verify     float64    `json:"verification_time_us,omitempty"`
}

// OperationsFor lists the operations recorded for a profile kind, in
// reporting order.
func OperationsFor(kind Capability) []Operation {
	if kind.Has(CapDigest) {
		return []Operation{OpDigest, OpVerify}
	}
	return []Operation{OpEncrypt, OpDecrypt}
}

func (s Sample) Elapsed(op Operation) (float64, bool) {
	switch op {
	case OpEncrypt:
		return s.Encrypt, s.Kind.Has(CapEncrypt)
	case OpDecrypt:
		return s.Decrypt, s.Kind.Has(CapDecrypt)
	case OpDigest:
		return s.Digest, s.Kind.Has(CapDigest)
	case OpVerify:
		return s.Verify, s.Kind.Has(CapDigest)
	}
	return 0, false
}

// SampleCollector keeps samples in arrival order without deduplication.
type SampleCollector struct {
	samples []Sample
}

func NewSampleCollector() *SampleCollector {
	return &SampleCollector{}
}

func (c *SampleCollector) Add(s Sample) {
	c.samples = append(c.samples, s)
}

func (c *SampleCollector) Len() int {
	return len(c.samples)
}

// Samples returns a copy of everything collected so far.
func (c *SampleCollector) Samples() []Sample {
	return append([]Sample(nil), c.samples...)
}

// Since returns a copy of samples added after the first n.
func (c *SampleCollector) Since(n int) []Sample {
	if n >= len(c.samples) {
		return nil
	}
	return append([]Sample(nil), c.samples[n:]...)
}
