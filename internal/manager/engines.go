package manager

import (
	"fmt"
	"strings"
)

// Engine names accepted by NewEngine.
const (
	EngineLlamaServer = "llama-server"
	EngineLlama       = "llama"
	EngineGemini      = "gemini"
)

// EngineOptions carries per-engine configuration; only the selected engine's
// section is read.
type EngineOptions struct {
	LlamaServer LlamaServerConfig
	Llama       LlamaConfig
	Gemini      GeminiConfig
}

// NewEngine selects an engine by name.
func NewEngine(kind string, opts EngineOptions) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case EngineLlamaServer, "":
		return NewLlamaServerEngine(opts.LlamaServer), nil
	case EngineLlama:
		if !llamaBuilt {
			opts.Llama.Logger.Warn().Msg("llama engine selected but binary built without -tags=llama; load will fail")
		}
		return NewLlamaEngine(opts.Llama), nil
	case EngineGemini:
		return NewGeminiEngine(opts.Gemini), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s, %s or %s)", kind, EngineLlamaServer, EngineLlama, EngineGemini)
	}
}
