package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the API listens on.
	ListenAddr string

	// MetricsAddr is the address and port for the Prometheus metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof mounts the pprof debugging API under /debug when true.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain keeps the server marked not ready
	// before logging that load balancers should have noticed.
	DrainDuration time.Duration

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxClockSkew bounds how far a signed request timestamp may be from server time.
	MaxClockSkew time.Duration
}
