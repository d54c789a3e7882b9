package sidewrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-relay/internal/relay"
)

// Sink stores one packet.
type Sink interface {
	Store(ctx context.Context, p relay.Packet) error
}

// RedisSink keeps the latest packet in a Redis hash.
type RedisSink struct {
	rdb *redis.Client
	key string
}

// NewRedisSink connects lazily to the Redis instance at redisURL
// (e.g. "redis://localhost:6379/0").
func NewRedisSink(redisURL, key string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if key == "" {
		return nil, errors.New("redis key is required")
	}
	return &RedisSink{rdb: redis.NewClient(opts), key: key}, nil
}

func (s *RedisSink) Store(ctx context.Context, p relay.Packet) error {
	err := s.rdb.HSet(ctx, s.key,
		"framing", p.Framing.String(),
		"data", p.Data,
		"received_at", p.ReceivedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("store packet in %s: %w", s.key, err)
	}
	return nil
}

// Load reads back the stored packet. ok is false when nothing was stored.
func (s *RedisSink) Load(ctx context.Context) (p relay.Packet, ok bool, err error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return relay.Packet{}, false, fmt.Errorf("load packet from %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return relay.Packet{}, false, nil
	}

	switch fields["framing"] {
	case "text":
		p.Framing = relay.FramingText
	case "binary":
		p.Framing = relay.FramingBinary
	default:
		return relay.Packet{}, false, fmt.Errorf("unknown framing %q in %s", fields["framing"], s.key)
	}
	p.Data = []byte(fields["data"])
	if ts := fields["received_at"]; ts != "" {
		p.ReceivedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return relay.Packet{}, false, fmt.Errorf("parse received_at: %w", err)
		}
	}
	return p, true, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
