package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/formsync-dev/formsync/pkg/store"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// MaxBodyBytes limits the size of snapshot request bodies.
	MaxBodyBytes int64

	// ReadBufferSize is the WebSocket read buffer size in bytes.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size in bytes.
	WriteBufferSize int

	// CheckOrigin validates the Origin header of WebSocket upgrade
	// requests. Defaults to SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout bounds individual WebSocket writes to watchers.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings idle watchers.
	PingInterval time.Duration

	// PongWait is how long to wait for a pong before dropping a watcher.
	// Must be larger than PingInterval.
	PongWait time.Duration

	// WatchBuffer is the per-watcher outbound queue length. A watcher
	// that falls this many change notifications behind is disconnected.
	WatchBuffer int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// Store persists form snapshots across restarts. When nil, an
	// in-memory store owned by the server is used.
	Store store.SnapshotStore

	// Logger receives server logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodyBytes:    1 << 20, // 1MB
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WatchBuffer:     8,
		ShutdownTimeout: 30 * time.Second,
	}
}

// SameOriginCheck returns true if the request origin matches the host.
// This is the default CheckOrigin function.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // No origin header (same-origin or non-browser)
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return originURL.Host == r.Host
}

// AllowAllOrigins is a CheckOrigin function that accepts any origin.
// Use only behind a trusted proxy or in development.
func AllowAllOrigins(r *http.Request) bool {
	return true
}
