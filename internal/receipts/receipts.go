// Package receipts abstracts the object store that holds uploaded payment
// receipts. The platform only ever handles opaque references; the bytes live
// in whatever backend implements ObjectStore.
package receipts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ObjectStore stores receipt images and hands out short-lived download links.
type ObjectStore interface {
	// Put stores the payload and returns a stable reference for it.
	Put(ctx context.Context, name string, payload []byte) (string, error)
	// SignedURL returns a time-limited download link for a reference.
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// MemoryStore keeps receipts in process memory. It backs tests and local
// development; production deployments plug in a real blob backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put is content-addressed so re-uploads of the same receipt collapse onto
// one reference.
func (s *MemoryStore) Put(_ context.Context, name string, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	sum := sha256.Sum256(payload)
	ref := fmt.Sprintf("receipts/%s-%s", hex.EncodeToString(sum[:8]), name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = payload
	return ref, nil
}

func (s *MemoryStore) SignedURL(_ context.Context, ref string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[ref]; !ok {
		return "", fmt.Errorf("unknown receipt reference %q", ref)
	}
	return fmt.Sprintf("memory://%s?expires=%d", ref, int64(ttl.Seconds())), nil
}

// Get returns the stored payload, for tests.
func (s *MemoryStore) Get(ref string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[ref]
	return b, ok
}
