package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long an untouched server cart is kept.
	DefaultTTL = 30 * 24 * time.Hour
	maxRetries = 5
)

// RedisRepository keeps each cart in the hash `cart:<userID>`, one field per
// product holding the JSON encoded line. Mutations are optimistic
// transactions on that key.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepository{client: client, ttl: ttl}
}

func cartKey(userID string) string { return "cart:" + userID }

func decodeLines(raw map[string]string) (map[string]Line, error) {
	m := make(map[string]Line, len(raw))
	for field, v := range raw {
		var l Line
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", field, err)
		}
		m[field] = l
	}
	return m, nil
}

func (r *RedisRepository) Get(ctx context.Context, userID string) ([]Line, error) {
	raw, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	m, err := decodeLines(raw)
	if err != nil {
		return nil, err
	}
	return linesOf(m), nil
}

func (r *RedisRepository) update(ctx context.Context, userID string, fn func(map[string]Line) error) ([]Line, error) {
	key := cartKey(userID)
	var out []Line

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		m, err := decodeLines(raw)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}

		fields := make([]interface{}, 0, 2*len(m))
		for id, l := range m {
			b, err := json.Marshal(l)
			if err != nil {
				return err
			}
			fields = append(fields, id, b)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(fields) > 0 {
				pipe.HSet(ctx, key, fields...)
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = linesOf(m)
		return nil
	}

	for i := 0; i < maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConcurrentUpdate
}

func (r *RedisRepository) Add(ctx context.Context, userID string, line Line) ([]Line, error) {
	return r.update(ctx, userID, func(m map[string]Line) error {
		applyAdd(m, line)
		return nil
	})
}

func (r *RedisRepository) SetQuantity(ctx context.Context, userID, productID string, qty int) ([]Line, error) {
	return r.update(ctx, userID, func(m map[string]Line) error { return applySet(m, productID, qty) })
}

func (r *RedisRepository) Remove(ctx context.Context, userID, productID string) ([]Line, error) {
	return r.update(ctx, userID, func(m map[string]Line) error { return applyRemove(m, productID) })
}

func (r *RedisRepository) Clear(ctx context.Context, userID string) error {
	return r.client.Del(ctx, cartKey(userID)).Err()
}

func (r *RedisRepository) Merge(ctx context.Context, userID string, local []Line, policy MergePolicy) ([]Line, error) {
	return r.update(ctx, userID, func(m map[string]Line) error {
		merged := MergeLines(linesOf(m), local, policy)
		clear(m)
		for _, l := range merged {
			m[l.ProductID] = l
		}
		return nil
	})
}
