package cache

import "time"

// RedisOption configures RedisCache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		Prefix:       "naly",
	}
}

// WithRedisURL sets a redis:// URL, e.g. redis://:secret@cache:6379/1.
func WithRedisURL(url string) RedisOption {
	return func(c *RedisConfig) { c.URL = url }
}

// WithRedisAddr sets host and port. Zero values keep the defaults.
func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) {
		if host != "" {
			c.Host = host
		}
		if port > 0 {
			c.Port = port
		}
	}
}

// WithRedisAuth sets the password and database number.
func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPrefix namespaces every key. Empty disables the prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration.
type MemoryConfig struct {
	// SweepThreshold is the entry count above which Set drops expired entries.
	SweepThreshold int
	DefaultTTL     time.Duration
	Now            func() time.Time
}

func WithSweepThreshold(n int) MemoryOption {
	return func(c *MemoryConfig) { c.SweepThreshold = n }
}

// WithDefaultTTL applies when Set gets a non-positive expiration.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.DefaultTTL = ttl }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryConfig) { c.Now = now }
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredConfig)

type LayeredConfig struct {
	MemoryOptions []MemoryOption
	// PromoteTTL caps how long a remote hit stays in memory.
	PromoteTTL time.Duration
}

func WithLayeredMemory(opts ...MemoryOption) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryOptions = append(c.MemoryOptions, opts...) }
}

func WithPromoteTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) { c.PromoteTTL = ttl }
}
