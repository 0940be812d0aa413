package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps keys under a per-device prefix in Redis. Tx queues
// writes in a MULTI/EXEC pipeline; reads inside Tx see committed data.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository namespaces every key as "<prefix>:<key>".
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "crewkeeper"
	}
	return &RedisRepository{client: client, prefix: prefix + ":"}
}

func (r *RedisRepository) key(k string) string { return r.prefix + k }

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return v, nil
}

func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *RedisRepository) List(ctx context.Context) (map[string][]byte, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	for i, k := range keys {
		s, ok := values[i].(string)
		if !ok {
			continue
		}
		result[strings.TrimPrefix(k, r.prefix)] = []byte(s)
	}
	return result, nil
}

func (r *RedisRepository) Clear(ctx context.Context) error {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

func (r *RedisRepository) Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(ctx, &redisTxView{parent: r, pipe: pipe})
	})
	if err != nil {
		return fmt.Errorf("metadata transaction: %w", err)
	}
	return nil
}

type redisTxView struct {
	parent *RedisRepository
	pipe   redis.Pipeliner
}

func (v *redisTxView) Get(ctx context.Context, key string) ([]byte, error) {
	return v.parent.Get(ctx, key)
}

func (v *redisTxView) Set(ctx context.Context, key string, value []byte) error {
	v.pipe.Set(ctx, v.parent.key(key), value, 0)
	return nil
}

func (v *redisTxView) Delete(ctx context.Context, key string) error {
	v.pipe.Del(ctx, v.parent.key(key))
	return nil
}

func (v *redisTxView) List(ctx context.Context) (map[string][]byte, error) {
	return v.parent.List(ctx)
}

func (v *redisTxView) Clear(ctx context.Context) error {
	keys, err := v.parent.scanKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	if len(keys) > 0 {
		v.pipe.Del(ctx, keys...)
	}
	return nil
}

func (v *redisTxView) Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	return fn(ctx, v)
}
