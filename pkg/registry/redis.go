package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisGetter is the slice of the Redis client the provider uses.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisProvider reads registries stored as strings under
// immuva:registry:<version>:<name>.
type RedisProvider struct {
	client RedisGetter
}

func NewRedisProvider(addr, password string, db int) *RedisProvider {
	return NewRedisProviderWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewRedisProviderWithClient(client RedisGetter) *RedisProvider {
	return &RedisProvider{client: client}
}

// RedisKey is the key a registry document lives under.
func RedisKey(name, version string) string {
	return fmt.Sprintf("immuva:registry:%s:%s", version, name)
}

func (p *RedisProvider) LoadJSON(ctx context.Context, name, version string) ([]byte, error) {
	key := RedisKey(name, version)
	b, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis %s", ErrRegistryNotFound, key)
		}
		return nil, fmt.Errorf("registry: redis get %s: %w", key, err)
	}
	return b, nil
}
