package httpapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/manager"
)

const defaultMaxBodyBytes int64 = 1 << 20

// CORSOptions configures cross-origin access for the browser front-end.
type CORSOptions struct {
	Enabled bool
	// Origins allowed; empty means "*".
	Origins []string
}

// Options configures the HTTP layer.
type Options struct {
	Logger zerolog.Logger
	// LogLevel is the default per-request log level ("off", "error", "info",
	// "debug"); requests may override it with ?log= or X-Log-Level.
	LogLevel string
	// MaxBodyBytes bounds JSON request bodies (default 1 MiB).
	MaxBodyBytes int64
	CORS         CORSOptions
	// BaseContext is canceled on shutdown; handlers stop waiting on generations then.
	BaseContext context.Context
	// Params are the generation parameters of POST /api/chat.
	Params manager.GenerateParams
	// RetryAfter is advertised with 429 responses.
	RetryAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if o.Params.MaxNewTokens == 0 {
		o.Params = manager.ServerParams()
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = time.Second
	}
	if o.CORS.Enabled && len(o.CORS.Origins) == 0 {
		o.CORS.Origins = []string{"*"}
	}
	return o
}
