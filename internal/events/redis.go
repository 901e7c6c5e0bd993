package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON on a per-server pub/sub channel,
// "<prefix>.server.<server_id>".
type RedisSink struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisSink creates a sink from a redis URL and verifies the connection.
func NewRedisSink(redisURL, prefix string) (*RedisSink, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisSink{rdb: rdb, prefix: prefix}, nil
}

// NewRedisSinkFromClient wraps an existing client, used by tests.
func NewRedisSinkFromClient(rdb *goredis.Client, prefix string) *RedisSink {
	return &RedisSink{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel name for a server.
func (s *RedisSink) Channel(serverID int64) string {
	return s.prefix + ".server." + strconv.FormatInt(serverID, 10)
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.Channel(ev.ServerID), data).Err(); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Subscribe returns a stream of one server's events. The stream closes
// when ctx is cancelled or the returned stop function is called; messages
// that do not decode as events are dropped.
func (s *RedisSink) Subscribe(ctx context.Context, serverID int64) (<-chan Event, func() error) {
	sub := s.rdb.Subscribe(ctx, s.Channel(serverID))
	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
