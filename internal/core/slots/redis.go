package slots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/zeusync/savestate/pkg/concurrent"
)

// RedisStore keeps each encoded slot under its own key and the set of slot
// names under an index key.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	codec  Codec
}

func NewRedisStore(client redis.UniversalClient, prefix string, codec Codec) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, codec: codec}
}

func (r *RedisStore) slotKey(name string) string { return r.prefix + "slot:" + name }

func (r *RedisStore) indexKey() string { return r.prefix + "slots" }

func (r *RedisStore) Save(ctx context.Context, s Slot) error {
	if !ValidName(s.Header.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, s.Header.Name)
	}
	var buf bytes.Buffer
	if err := r.codec.Encode(&buf, s); err != nil {
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.slotKey(s.Header.Name), buf.Bytes(), 0)
		pipe.SAdd(ctx, r.indexKey(), s.Header.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, name string) (Slot, error) {
	raw, err := r.get(ctx, name)
	if err != nil {
		return Slot{}, err
	}
	return r.codec.Decode(bytes.NewReader(raw))
}

func (r *RedisStore) get(ctx context.Context, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	raw, err := r.client.Get(ctx, r.slotKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("slots: load %s: %w", name, err)
	}
	return raw, nil
}

func (r *RedisStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.slotKey(name))
		pipe.SRem(ctx, r.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("slots: delete %s: %w", name, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]Header, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("slots: list: %w", err)
	}
	slices.Sort(names)
	found, err := concurrent.Map(ctx, names, listWorkers, func(ctx context.Context, name string) (*Header, error) {
		raw, err := r.get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		h, err := r.codec.DecodeHeader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("slots: list %s: %w", name, err)
		}
		return &h, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Header, 0, len(found))
	for _, h := range found {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out, nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*FileStore)(nil)
)
