package metadata

import (
	"context"
	"maps"
	"sync"
)

// MemoryRepository keeps everything in process memory. It backs the file
// store's transactions and is used wherever durability is not wanted.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string][]byte)}
}

func newMemoryRepositoryFrom(data map[string][]byte) *MemoryRepository {
	return &MemoryRepository{data: cloneData(data)}
}

func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r *MemoryRepository) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = append([]byte(nil), value...)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneData(r.data), nil
}

func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string][]byte)
	return nil
}

// Tx stages writes on a copy and swaps it in when fn succeeds.
func (r *MemoryRepository) Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := newMemoryRepositoryFrom(r.data)
	if err := fn(ctx, staged); err != nil {
		return err
	}
	r.data = staged.snapshot()
	return nil
}

func (r *MemoryRepository) snapshot() map[string][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneData(r.data)
}

func cloneData(src map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(src))
	for k, v := range maps.All(src) {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
