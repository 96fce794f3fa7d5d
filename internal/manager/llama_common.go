package manager

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"chatd/internal/hub"
	"chatd/internal/registry"
	"chatd/pkg/types"
)

// LlamaConfig configures the in-process llama engine.
type LlamaConfig struct {
	// ModelsDir holds GGUF files, laid out as <dir>/<repo>/<file> for hub downloads.
	ModelsDir   string
	ContextSize int
	Threads     int
	// GPULayers is the number of layers offloaded when the device is gpu.
	GPULayers int
	HubURL    string
	HubToken  string
	Logger    zerolog.Logger
	// HTTPClient is used for hub downloads; nil means http.DefaultClient.
	HTTPClient *http.Client
}

const (
	loadingModelMessage = "Loading model (this may take several minutes)..."
	downloadFloor       = 10
	downloadCeil        = 90
)

// resolveModelFile finds the GGUF file for spec on disk or downloads it from
// the hub, narrating progress. Without an explicit file, the precision
// configured for "model" selects the quantization among local files.
func resolveModelFile(ctx context.Context, cfg LlamaConfig, spec ModelSpec, report ProgressFunc) (string, error) {
	if report == nil {
		report = func(types.LoadingProgress) {}
	}
	report(types.LoadingProgress{Status: types.LoadDownloading, Progress: types.Percent(downloadFloor), Message: "Looking for model files..."})
	entries, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("scan models dir: %w", err)
	}
	quant := spec.Options.Precision("model")
	if e, ok := registry.Find(entries, spec.ID, spec.File, quant); ok {
		cfg.Logger.Info().Str("path", e.Path).Msg("using local model file")
		return e.Path, nil
	}
	if e, ok := registry.Find(entries, "", spec.File, quant); ok && spec.File != "" {
		cfg.Logger.Info().Str("path", e.Path).Msg("using local model file")
		return e.Path, nil
	}
	if spec.File == "" {
		return "", fmt.Errorf("no local GGUF file for %s (quant %q) in %s and no file configured to download", spec.ID, quant, cfg.ModelsDir)
	}

	dir := cfg.ModelsDir
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	d := &hub.Downloader{BaseURL: cfg.HubURL, Client: cfg.HTTPClient, Logger: cfg.Logger}
	msg := "Downloading " + spec.File + "..."
	return d.Fetch(ctx, hub.Request{Repo: spec.ID, Revision: spec.Revision, File: spec.File, Token: cfg.HubToken}, dir,
		func(done, total int64) {
			p := types.LoadingProgress{Status: types.LoadDownloading, Message: msg}
			if total > 0 {
				p.Progress = types.Percent(downloadFloor + float64(done)/float64(total)*(downloadCeil-downloadFloor))
			}
			report(p)
		})
}

// formatChatML renders messages with the ChatML template understood by
// Qwen-style instruct models and leaves the assistant turn open.
func formatChatML(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|im_start|>")
		b.WriteString(string(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString("<|im_end|>\n")
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

// chatMLStop ends generation at the close of the assistant turn.
var chatMLStop = []string{"<|im_end|>", "<|im_start|>"}
