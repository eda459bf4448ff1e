package stashy

import (
	"context"
	"errors"
	"fmt"

	log "github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"
)

// Credentials holds a redis username and password pair, used only for
// connection-string construction in ConnectRedis.
type Credentials struct {
	Username string
	Password string
}

// redisConfig holds configuration options during redis connection setup.
type redisConfig struct {
	creds    *Credentials
	database int
	hasDB    bool
}

// RedisOption is a functional option for configuring the redis connection.
type RedisOption func(*redisConfig)

// WithCredentials sets the username and password for the connection.
func WithCredentials(creds Credentials) RedisOption {
	return func(cfg *redisConfig) {
		cfg.creds = &creds
	}
}

// WithDatabase selects the logical database index for the connection.
func WithDatabase(index int) RedisOption {
	return func(cfg *redisConfig) {
		cfg.database = index
		cfg.hasDB = true
	}
}

// Redis is a Stash backed by a redis server. The underlying client
// multiplexes a connection pool and is safe for concurrent use, no local
// locking is applied on top. Fetch maps to GET, Stash to SET with the GET
// flag (previous value returned atomically with the write), Delete to GETDEL.
type Redis struct {
	client *redis.Client
}

// interface check
var _ Stash = (*Redis)(nil)

// ConnectRedis establishes a connection to a redis server and returns a new
// Redis stash. Credentials and database index are optional; the database
// defaults to 0 only when neither credentials nor an explicit index are
// given, credentials without an index leave the database suffix off the URL.
func ConnectRedis(ctx context.Context, host string, port int, opts ...RedisOption) (*Redis, error) {
	cfg := &redisConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return ConnectRedisURL(ctx, redisURL(host, port, cfg))
}

// redisURL builds the connection string: redis://[user:pass@]host:port[/db].
func redisURL(host string, port int, cfg *redisConfig) string {
	switch {
	case cfg.creds != nil && cfg.hasDB:
		return fmt.Sprintf("redis://%s:%s@%s:%d/%d", cfg.creds.Username, cfg.creds.Password, host, port, cfg.database)
	case cfg.creds != nil:
		return fmt.Sprintf("redis://%s:%s@%s:%d", cfg.creds.Username, cfg.creds.Password, host, port)
	case cfg.hasDB:
		return fmt.Sprintf("redis://%s:%d/%d", host, port, cfg.database)
	default:
		return fmt.Sprintf("redis://%s:%d/0", host, port)
	}
}

// ConnectRedisURL connects with a pre-built connection string, bypassing
// field composition. The connection is verified with a ping before use.
func ConnectRedisURL(ctx context.Context, rawURL string) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}

	log.Printf("[DEBUG] connected to redis at %s db %d", opt.Addr, opt.DB)
	return &Redis{client: client}, nil
}

// Fetch returns the value stored under key, absence is a miss, not an error.
func (r *Redis) Fetch(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr(err)
	}
	return value, true, nil
}

// Stash validates key, stores value and returns the previous value if the
// key already existed. SET with the GET flag makes the exchange atomic.
func (r *Redis) Stash(ctx context.Context, key, value string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	prev, err := r.client.SetArgs(ctx, key, value, redis.SetArgs{Get: true}).Result()
	if errors.Is(err, redis.Nil) { // write succeeded, no previous value
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr(err)
	}
	return prev, true, nil
}

// Delete removes the entry for key and returns the removed value if the key
// existed.
func (r *Redis) Delete(ctx context.Context, key string) (string, bool, error) {
	removed, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr(err)
	}
	return removed, true, nil
}

// Close closes the underlying redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
