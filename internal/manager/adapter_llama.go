//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"chatd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine loads GGUF models in-process through go-llama.cpp.
type llamaEngine struct {
	cfg LlamaConfig
}

// NewLlamaEngine returns the in-process llama engine.
func NewLlamaEngine(cfg LlamaConfig) Engine { return &llamaEngine{cfg: cfg} }

func (e *llamaEngine) Name() string { return "llama" }

func (e *llamaEngine) Load(ctx context.Context, spec ModelSpec, report ProgressFunc) (Handle, error) {
	path, err := resolveModelFile(ctx, e.cfg, spec, report)
	if err != nil {
		return nil, err
	}
	if report != nil {
		report(types.LoadingProgress{Status: types.LoadDownloading, Progress: types.Percent(downloadCeil), Message: loadingModelMessage})
	}
	// Configure model options
	mo := []llama.ModelOption{
		llama.SetContext(zn(e.cfg.ContextSize, 2048)),
	}
	if spec.Options.Device == DeviceGPU {
		mo = append(mo, llama.SetGPULayers(zn(e.cfg.GPULayers, 99)))
	}
	if p := spec.Options.Precision("kv_cache"); p == "fp16" || p == "f16" {
		mo = append(mo, llama.EnableF16Memory)
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: m, threads: e.cfg.Threads}, nil
}

// llamaHandle owns the loaded model
type llamaHandle struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

func (h *llamaHandle) Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// Stop predicting once the caller gives up.
	h.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := h.model.Predict(formatChatML(msgs), predictOptions(params, h.threads)...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	for _, s := range chatMLStop {
		text, _, _ = strings.Cut(text, s)
	}
	return text, nil
}

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts generation params into go-llama.cpp options. Without
// sampling the engine defaults are kept.
func predictOptions(params GenerateParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(params.MaxNewTokens, DefaultMaxNewTokens)),
		llama.SetThreads(zn(threads, 4)),
		llama.SetStopWords(chatMLStop...),
	}
	if params.DoSample {
		if params.Temperature > 0 {
			po = append(po, llama.SetTemperature(params.Temperature))
		}
		if params.TopP > 0 {
			po = append(po, llama.SetTopP(params.TopP))
		}
	}
	return po
}
