package earmark

import (
	"time"

	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/earmark/listen"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
)

// Storage backends accepted by WithBackend.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// DefaultChunkFrames is the capture chunk size: 100 ms at 48 kHz.
const DefaultChunkFrames = 4800

type Config struct {
	DataDir     string
	Backend     string
	TempDir     string
	Threshold   int
	Timeout     time.Duration
	BufferSize  int
	NativeRate  int
	Channels    int
	ChunkFrames int
	TagNames    bool // name songs from embedded tags when present
	PruneOnOpen bool // drop orphaned fingerprint entries when the store opens
	SyncWrites  bool
	Decoder     audio.Decoder
	Store       Store
	Logger      Logger
}

type Option func(*Config)

func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

func WithBackend(name string) Option {
	return func(c *Config) {
		c.Backend = name
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithThreshold(votes int) Option {
	return func(c *Config) {
		c.Threshold = votes
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

func WithBufferSize(samples int) Option {
	return func(c *Config) {
		c.BufferSize = samples
	}
}

func WithNativeRate(rate int) Option {
	return func(c *Config) {
		c.NativeRate = rate
	}
}

func WithChannels(n int) Option {
	return func(c *Config) {
		c.Channels = n
	}
}

func WithDecoder(d audio.Decoder) Option {
	return func(c *Config) {
		c.Decoder = d
	}
}

// WithStore uses an already opened store; the service closes it on Close.
func WithStore(s Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithTagNames(enabled bool) Option {
	return func(c *Config) {
		c.TagNames = enabled
	}
}

func WithPruneOnOpen(enabled bool) Option {
	return func(c *Config) {
		c.PruneOnOpen = enabled
	}
}

func WithSyncWrites(enabled bool) Option {
	return func(c *Config) {
		c.SyncWrites = enabled
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:     "earmark-data",
		Backend:     BackendBadger,
		TempDir:     "/tmp",
		Threshold:   match.DefaultThreshold,
		Timeout:     match.DefaultTimeout,
		BufferSize:  match.DefaultBufferSize,
		NativeRate:  listen.DefaultNativeRate,
		Channels:    listen.DefaultChannels,
		ChunkFrames: DefaultChunkFrames,
	}
}

// MatchConfig is the voting configuration derived from c.
func (c *Config) MatchConfig() match.Config {
	return match.Config{
		Threshold:  c.Threshold,
		Timeout:    c.Timeout,
		BufferSize: c.BufferSize,
	}
}
