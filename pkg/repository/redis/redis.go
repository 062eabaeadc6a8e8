package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// DefaultMaxHistory is the history cap used when WithMaxHistory is not given
const DefaultMaxHistory = 100

// Redis is a MemoryStore backed by a Redis server. Context records are
// hashes under user_context:{user_id} and histories are lists under
// chat_history:{user_id}, most recent first.
type Redis struct {
	client     *redis.Client
	options    *redis.Options
	keyPrefix  string
	maxHistory int
	now        func() time.Time
}

var _ interfaces.MemoryStore = &Redis{}

type Option func(*Redis)

func WithPassword(password string) Option {
	return func(r *Redis) {
		r.options.Password = password
	}
}

func WithDB(db int) Option {
	return func(r *Redis) {
		r.options.DB = db
	}
}

// WithKeyPrefix namespaces every key, e.g. for sharing one Redis between environments
func WithKeyPrefix(prefix string) Option {
	return func(r *Redis) {
		r.keyPrefix = prefix
	}
}

// WithMaxHistory sets the maximum number of turns kept per user
func WithMaxHistory(n int) Option {
	return func(r *Redis) {
		if n > 0 {
			r.maxHistory = n
		}
	}
}

// WithClock replaces the clock used to stamp context records
func WithClock(now func() time.Time) Option {
	return func(r *Redis) {
		r.now = now
	}
}

// New connects to the Redis server at addr and verifies the connection with PING
func New(ctx context.Context, addr string, opts ...Option) (*Redis, error) {
	r := &Redis{
		options:    &redis.Options{Addr: addr},
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.client = redis.NewClient(r.options)
	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	return r, nil
}

// Close releases the underlying connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) contextKey(userID string) string {
	return r.keyPrefix + "user_context:" + userID
}

func (r *Redis) historyKey(userID string) string {
	return r.keyPrefix + "chat_history:" + userID
}
