package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/task"
)

type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

type Instance struct {
	client *redis.Client
	prefix string
}

func New(ctx context.Context, o Options) (instance.Cache, error) {
	if o.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := o.Prefix
	if prefix == "" {
		prefix = "image-resizer:analysis:"
	}

	return &Instance{
		client: client,
		prefix: prefix,
	}, nil
}

func (i *Instance) key(k string) string {
	return i.prefix + k
}

func (i *Instance) Get(ctx context.Context, key string) (task.Analysis, bool, error) {
	raw, err := i.client.Get(ctx, i.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return task.Analysis{}, false, nil
		}

		return task.Analysis{}, false, err
	}

	result := task.Analysis{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return task.Analysis{}, false, err
	}

	return result, true, nil
}

func (i *Instance) Set(ctx context.Context, key string, value task.Analysis, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return i.client.Set(ctx, i.key(key), data, ttl).Err()
}

func (i *Instance) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *Instance) Close() error {
	return i.client.Close()
}
