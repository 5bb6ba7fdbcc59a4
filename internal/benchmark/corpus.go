package benchmark

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/user/cipherbench/internal/storage"
)

const textAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CorpusGenerator fills fresh workload content on every call. Content is not
// secret; crypto/rand is used only because it never repeats across calls.
type CorpusGenerator struct {
	store *storage.CorpusStore
	rand  io.Reader
}

func NewCorpusGenerator(store *storage.CorpusStore) *CorpusGenerator {
	return &CorpusGenerator{store: store, rand: rand.Reader}
}

// Generate creates one item per requested size, in order. On failure the
// items created by this call are removed again; removal errors are joined
// into the returned cause and the store's Cleanup retries those items.
func (g *CorpusGenerator) Generate(sizes []int, generation int, policy FillPolicy) ([]*storage.Item, error) {
	items := make([]*storage.Item, 0, len(sizes))

	for _, size := range sizes {
		content, err := g.fill(size, policy)
		if err == nil {
			var item *storage.Item
			if item, err = g.store.Put(size, generation, content); err == nil {
				items = append(items, item)
				continue
			}
		}

		errs := []error{err}
		for _, it := range items {
			if rmErr := g.store.Remove(it); rmErr != nil {
				errs = append(errs, rmErr)
			}
		}
		return nil, &Error{
			Kind:     KindIOFailure,
			Stage:    StateGeneratingCorpus,
			FileSize: size,
			Message:  "corpus generation failed",
			Cause:    errors.Join(errs...),
		}
	}

	return items, nil
}

func (g *CorpusGenerator) fill(size int, policy FillPolicy) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid corpus size %d", size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}

	switch policy {
	case FillRandom:
	case FillText:
		for i, b := range buf {
			buf[i] = textAlphabet[int(b)%len(textAlphabet)]
		}
	default:
		return nil, fmt.Errorf("unknown fill policy %q", policy)
	}

	return buf, nil
}
