package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

const (
	defaultKeyPrefix = "deskflow:audit:"
	defaultTrailTTL  = 24 * time.Hour
)

type RedisConfig struct {
	URL          string        `envconfig:"URL" split_words:"true" required:"true"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"3s"`
	TTL          time.Duration `envconfig:"TTL" split_words:"true" default:"24h"`
}

// RedisSink appends each message to a per-session list so the trail survives
// the process and stays in arrival order.
type RedisSink struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

type RedisOption func(*RedisSink)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

func WithTrailTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSink) {
		s.ttl = ttl
	}
}

func NewRedis(cfg RedisConfig, opts ...RedisOption) (*RedisSink, error) {
	redisOpts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.ReadTimeout = cfg.ReadTimeout
	redisOpts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.TTL, opts...), nil
}

// NewRedisWithClient wraps an existing client; tests inject a miniredis-backed
// one here.
func NewRedisWithClient(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       ttl,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTrailTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSink) Append(ctx context.Context, sessionID string, msg contractx.AgentMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit message: %w", err)
	}
	key := s.key(sessionID)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit message: %w", err)
	}
	return nil
}

func (s *RedisSink) Trail(ctx context.Context, sessionID string) ([]contractx.AgentMessage, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	out := make([]contractx.AgentMessage, 0, len(raw))
	for _, item := range raw {
		var msg contractx.AgentMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode audit message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisSink) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

var _ contractx.AuditSink = (*RedisSink)(nil)
