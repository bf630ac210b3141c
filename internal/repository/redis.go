package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/whisprlabs/whisprgate/internal/cluster"
	"github.com/whisprlabs/whisprgate/internal/config"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// RedisOffsetRegistry reserves computation offsets with SET NX so uniqueness
// holds across gateway replicas sharing one Redis. The TTL is a backstop
// against slots leaked by a crashed worker, not an expiry contract.
type RedisOffsetRegistry struct {
	client *RedisClient
	ttl    time.Duration
	prefix string
}

func NewRedisOffsetRegistry(client *RedisClient, ttl time.Duration) *RedisOffsetRegistry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisOffsetRegistry{
		client: client,
		ttl:    ttl,
		prefix: "offset:",
	}
}

type offsetWire struct {
	User     string `json:"user"`
	QueuedAt int64  `json:"queued_at"`
}

func (r *RedisOffsetRegistry) key(offset uint64) string {
	return r.prefix + strconv.FormatUint(offset, 10)
}

func (r *RedisOffsetRegistry) Reserve(ctx context.Context, offset uint64, user model.Address) error {
	payload, _ := json.Marshal(offsetWire{
		User:     user.Hex(),
		QueuedAt: time.Now().UTC().Unix(),
	})
	ok, err := r.client.Client.SetNX(ctx, r.key(offset), payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve offset: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.ErrDuplicateOffset, "computation offset already in use", nil)
	}
	return nil
}

func (r *RedisOffsetRegistry) Release(ctx context.Context, offset uint64) error {
	return r.client.Client.Del(ctx, r.key(offset)).Err()
}

func (r *RedisOffsetRegistry) Pending(ctx context.Context, offset uint64) (*cluster.PendingComputation, bool) {
	raw, err := r.client.Client.Get(ctx, r.key(offset)).Bytes()
	if err != nil {
		return nil, false
	}
	var wire offsetWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false
	}
	user, err := model.AddressFromHex(wire.User)
	if err != nil {
		return nil, false
	}
	return &cluster.PendingComputation{
		Offset:   offset,
		User:     user,
		QueuedAt: time.Unix(wire.QueuedAt, 0).UTC(),
	}, true
}
