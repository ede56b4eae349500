package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/btracey/crossval"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // prepended to every key
	TTL      time.Duration // zero keeps results forever
}

// Redis stores results as JSON strings in Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects to the Redis server described by opts and checks the
// connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "store: connecting to redis at %s", opts.Addr)
	}
	return &Redis{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (crossval.SweepResult, bool, error) {
	var res crossval.SweepResult
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return res, false, nil
	}
	if err != nil {
		return res, false, errors.Wrapf(err, "store: get %s", key)
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return res, false, errors.Wrapf(err, "store: decoding %s", key)
	}
	return res, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, res crossval.SweepResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return errors.Wrapf(err, "store: encoding %s", key)
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "store: set %s", key)
	}
	return nil
}

// Delete removes the stored results for keys.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return errors.Wrap(r.client.Del(ctx, full...).Err(), "store: delete")
}

func (r *Redis) Close() error {
	return r.client.Close()
}
