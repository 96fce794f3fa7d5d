//go:build !llama

package manager

// No-CGO stub for the llama engine, compiled when the 'llama' build tag is
// NOT set. The real engine lives in adapter_llama.go.

import (
	"context"
)

var llamaBuilt = false

type llamaEngine struct {
	cfg LlamaConfig
}

// NewLlamaEngine returns an engine whose Load always fails in this build.
func NewLlamaEngine(cfg LlamaConfig) Engine { return &llamaEngine{cfg: cfg} }

func (e *llamaEngine) Name() string { return "llama" }

func (e *llamaEngine) Load(ctx context.Context, spec ModelSpec, report ProgressFunc) (Handle, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
