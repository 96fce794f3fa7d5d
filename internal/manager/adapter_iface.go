package manager

import (
	"context"

	"chatd/pkg/types"
)

// ProgressFunc receives non-terminal progress updates from an engine while it loads.
// The Manager owns the terminal transitions; terminal statuses reported here are ignored.
type ProgressFunc func(types.LoadingProgress)

// Engine acquires a model. Concrete implementations (llama.cpp server,
// in-process llama.cpp, Gemini) satisfy this interface.
type Engine interface {
	// Name identifies the engine in logs and status output.
	Name() string
	// Load acquires the model described by spec. It may take minutes and must
	// return when ctx is canceled.
	Load(ctx context.Context, spec ModelSpec, progress ProgressFunc) (Handle, error)
}

// Handle is a loaded model. Implementations need not be safe for concurrent
// use: the Manager serializes every call.
type Handle interface {
	// Generate produces one assistant reply for the ordered messages.
	Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error)
	// Close releases any resources associated with the handle.
	Close() error
}
