// Package metadata is the client's durable key/value store. It holds the
// session token and the serialized profile; every backend surfaces its
// failures to the caller and offers Tx so related keys change together.
package metadata

import (
	"context"
)

// Repository is a last-write-wins key/value store.
//
// Get returns (nil, nil) for an absent key. Tx runs fn against a view whose
// writes become visible all at once, or not at all when fn fails.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
	Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}
