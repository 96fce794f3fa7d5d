package manager

import (
	"time"

	"chatd/pkg/types"
)

// Device selects where an engine runs the model.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// LoadOptions carries quantization and device selection to the engine.
// Dtype maps a sub-module name (e.g. "decoder_model_merged") to a precision
// such as "q4", "q8" or "fp16"; the key "model" applies to single-file models.
type LoadOptions struct {
	Dtype  map[string]string
	Device Device
}

// ModelSpec identifies the model an engine acquires.
type ModelSpec struct {
	// ID is the hub repository or the engine-side model name.
	ID string
	// Revision pins a hub revision; empty means "main".
	Revision string
	// File is an engine specific artifact, e.g. a GGUF file inside the repository.
	File    string
	Options LoadOptions
}

// Precision returns the configured precision for sub-module name, falling back
// to the "model" and "default" entries.
func (o LoadOptions) Precision(name string) string {
	for _, k := range []string{name, "model", "default"} {
		if v := o.Dtype[k]; v != "" {
			return v
		}
	}
	return ""
}

// DefaultMaxNewTokens bounds every reply.
const DefaultMaxNewTokens = 256

// FallbackReply replaces empty or whitespace-only engine output.
const FallbackReply = "I'm not sure how to respond to that."

// GenerateParams are passed through to the engine for one call.
// A zero Temperature/TopP with DoSample false means "engine default".
type GenerateParams struct {
	MaxNewTokens int
	DoSample     bool
	Temperature  float32
	TopP         float32
}

// ClientParams are used by the local chat client: engine default sampling.
func ClientParams() GenerateParams {
	return GenerateParams{MaxNewTokens: DefaultMaxNewTokens}
}

// ServerParams are used by the HTTP server.
func ServerParams() GenerateParams {
	return GenerateParams{MaxNewTokens: DefaultMaxNewTokens, DoSample: true, Temperature: 0.7, TopP: 0.9}
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	Progress types.LoadingProgress
	Loading  bool
	Attempts int
	LoadedAt time.Time
	Closed   bool
	// Queued counts requests holding a queue slot, in-flight included.
	Queued   int
	Inflight int
}
