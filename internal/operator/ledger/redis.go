package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

const keyPrefix = "pumpkit:responded:"

type RedisConfig struct {
	// Addr is host:port or a redis:// URL
	Addr     string
	Password string
	TTL      time.Duration
}

// RedisLedger survives restarts and can be shared by replicas of the same operator
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

func NewRedisLedger(cfg RedisConfig, logger logging.Logger) (*RedisLedger, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	opt, err := redis.ParseURL(cfg.Addr)
	if err != nil {
		opt = &redis.Options{Addr: cfg.Addr}
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	l := &RedisLedger{
		client: redis.NewClient(opt),
		ttl:    cfg.TTL,
		logger: logger,
	}
	if err := l.CheckConnection(); err != nil {
		_ = l.client.Close()
		return nil, err
	}
	return l, nil
}

func (r *RedisLedger) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.client.Ping(ctx).Result(); err != nil {
		r.logger.Errorf("Failed to connect to Redis: %v", err)
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.Info("Connected to Redis ledger")
	return nil
}

func (r *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read ledger: %w", err)
	}
	return n > 0, nil
}

func (r *RedisLedger) Mark(ctx context.Context, key string) error {
	if err := r.client.Set(ctx, keyPrefix+key, time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

func (r *RedisLedger) Close() error {
	return r.client.Close()
}
