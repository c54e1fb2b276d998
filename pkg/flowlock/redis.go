package flowlock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const (
	defaultLockTTL       = 2 * time.Minute
	defaultRetryInterval = 100 * time.Millisecond
	releaseTimeout       = 5 * time.Second
)

// releaseScript deletes the lock only if it is still held with the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// KeyPrefix namespaces the lock keys of a deployment.
	KeyPrefix string `yaml:"key_prefix"`
	// LockTTL bounds how long a crashed holder blocks the flow.
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// NewRedisClient connects and pings the server.
func NewRedisClient(conf RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisLocker is a Locker shared by all processes using the same Redis server.
type RedisLocker struct {
	client        redis.Cmdable
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client redis.Cmdable, conf RedisConfig) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		prefix:        conf.KeyPrefix,
		ttl:           conf.LockTTL,
		retryInterval: conf.RetryInterval,
	}
	if l.ttl <= 0 {
		l.ttl = defaultLockTTL
	}
	if l.retryInterval <= 0 {
		l.retryInterval = defaultRetryInterval
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string, wait time.Duration) (Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(waitOrDefault(wait))

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, ddsTypes.NewFlowWriteError("lock "+key, 0, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, timeoutError(key)
		}
		sleep := l.retryInterval
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey string, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				slog.Error("failed to release flow lock", slog.String("key", redisKey), slog.String("error", err.Error()))
			}
		})
	}
}
