package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyRecord describes key material used during a run. Secret bytes are never
// stored here.
type KeyRecord struct {
	ID           string    `json:"id"`
	Profile      string    `json:"profile"`
	Algorithm    string    `json:"algorithm"`
	Bits         int       `json:"bits"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	PublicKeyPEM string    `json:"public_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	RunID        string    `json:"run_id"`
}

type KeyRing struct {
	mu    sync.RWMutex
	keys  map[string]*KeyRecord
	order []string
}

func NewKeyRing() *KeyRing {
	return &KeyRing{
		keys: make(map[string]*KeyRecord),
	}
}

// Record registers key metadata. publicDER may be nil for symmetric keys.
func (kr *KeyRing) Record(runID, profile, algorithm string, bits int, publicDER []byte) *KeyRecord {
	rec := &KeyRecord{
		ID:        uuid.New().String(),
		Profile:   profile,
		Algorithm: algorithm,
		Bits:      bits,
		CreatedAt: time.Now(),
		RunID:     runID,
	}

	if len(publicDER) > 0 {
		sum := sha256.Sum256(publicDER)
		rec.Fingerprint = hex.EncodeToString(sum[:])
		rec.PublicKeyPEM = string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		}))
	}

	kr.mu.Lock()
	kr.keys[rec.ID] = rec
	kr.order = append(kr.order, rec.ID)
	kr.mu.Unlock()

	return rec
}

func (kr *KeyRing) Get(id string) (*KeyRecord, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	rec, ok := kr.keys[id]
	return rec, ok
}

// All returns records in registration order.
func (kr *KeyRing) All() []*KeyRecord {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	out := make([]*KeyRecord, 0, len(kr.order))
	for _, id := range kr.order {
		out = append(out, kr.keys[id])
	}
	return out
}

func (kr *KeyRing) ByRun(runID string) []*KeyRecord {
	var out []*KeyRecord
	for _, rec := range kr.All() {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out
}

func (kr *KeyRing) Len() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return len(kr.keys)
}
