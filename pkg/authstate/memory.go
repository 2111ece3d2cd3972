package authstate

import (
	"context"
	"sync"
)

type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte)}
}

func (b *MemoryBackend) Read(_ context.Context, keys []string) (map[string][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, ok := b.entries[key]; ok {
			out[key] = append([]byte(nil), data...)
		}
	}
	return out, nil
}

func (b *MemoryBackend) Write(_ context.Context, entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, data := range entries {
		if data == nil {
			delete(b.entries, key)
			continue
		}
		b.entries[key] = append([]byte(nil), data...)
	}
	return nil
}

func (b *MemoryBackend) Clear(context.Context) error {
	b.mu.Lock()
	b.entries = make(map[string][]byte)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Len reports the number of stored entries.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
