package assessdex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option customizes New.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Storage drivers.
const (
	driverMemory = "memory"
	driverSQLite = "sqlite"
	driverValkey = "valkey"
	driverRedis  = "redis"
)

type clientConfig struct {
	// storage
	driver     string
	addrs      []string
	password   string
	sqlitePath string
	keyPrefix  string

	// embedding
	embedder         Embedder
	vectorDimensions int

	// ingestion
	maxChunkSize   int
	overlap        int
	maxUploadBytes int64

	// observability
	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps chunks in process memory; they are gone after Close.
// It is the default storage.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) { c.driver = driverMemory })
}

// WithSQLite persists chunks to the SQLite file at path, creating it if needed.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.sqlitePath = path
	})
}

// WithValkey stores chunks on a Valkey server at addr ("host:port").
func WithValkey(addr, password string) Option { return server(driverValkey, addr, password) }

// WithRedis stores chunks on a Redis server at addr ("host:port").
func WithRedis(addr, password string) Option { return server(driverRedis, addr, password) }

func server(driver, addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driver
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix lets several clients share one server. The default is "assessdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) { c.keyPrefix = prefix })
}

// WithEmbedder replaces the built-in feature-hashing embedder, e.g. with an
// OpenAI-compatible one. Its vector size must stay fixed for the life of the store.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) { c.embedder = e })
}

// WithVectorDimensions sizes the built-in embedder's vectors (default 384).
// It has no effect together with WithEmbedder.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) { c.vectorDimensions = dim })
}

// WithChunking sets the chunk size and the overlap between neighbouring chunks,
// both in characters. Defaults are 1000 and 150; overlap must stay below size.
func WithChunking(maxChunkSize, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxChunkSize, c.overlap = maxChunkSize, overlap
	})
}

// WithMaxUploadBytes rejects larger documents at ingestion (default 10 MiB).
func WithMaxUploadBytes(n int64) Option {
	return optionFunc(func(c *clientConfig) { c.maxUploadBytes = n })
}

// WithLogger logs every call: failures at Warn, the rest at Debug.
// Without it the client is silent.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) { c.logger = l })
}

// WithPrometheus registers call counts, latencies and token usage on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) { c.metricsReg = reg })
}
