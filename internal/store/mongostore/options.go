package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Options configures the MongoDB store.
//
// Defaults:
//   - Database:       database of the connection string, else "stitchgate"
//   - ConnectTimeout: 10s
//   - PingTimeout:    2s (used only if the context has no earlier deadline)
//   - ReadyTTL:       5s between pings of a healthy connection
//
// All options are safe to leave zero-valued to use defaults.
type Options struct {
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	ReadyTTL       time.Duration
	MaxPoolSize    uint64

	// Client receives the driver options before connecting.
	Client func(*options.ClientOptions)
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		ConnectTimeout: 10 * time.Second,
		PingTimeout:    2 * time.Second,
		ReadyTTL:       5 * time.Second,
	}
}

func WithDatabase(name string) Option { return func(o *Options) { o.Database = name } }

func WithAppName(name string) Option { return func(o *Options) { o.AppName = name } }

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PingTimeout = d
		}
	}
}

// WithReadyTTL sets how long a successful ping is trusted. Zero pings on
// every readiness check.
func WithReadyTTL(d time.Duration) Option { return func(o *Options) { o.ReadyTTL = d } }

func WithMaxPoolSize(n uint64) Option { return func(o *Options) { o.MaxPoolSize = n } }

// WithClientOptions lets callers adjust the driver options directly.
func WithClientOptions(f func(*options.ClientOptions)) Option {
	return func(o *Options) { o.Client = f }
}
