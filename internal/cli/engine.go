package cli

import (
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/common/fsutil"
	"chatd/internal/config"
	"chatd/internal/manager"
)

// newEngine builds the configured inference engine.
func newEngine(cfg config.Config, log zerolog.Logger) (manager.Engine, error) {
	modelsDir, err := fsutil.ExpandHome(cfg.Llama.ModelsDir)
	if err != nil {
		return nil, err
	}
	engineLog := log.With().Str("engine", cfg.Engine).Logger()
	return manager.NewEngine(cfg.Engine, manager.EngineOptions{
		LlamaServer: manager.LlamaServerConfig{
			BaseURL:        cfg.LlamaServer.URL,
			APIKey:         cfg.LlamaServer.APIKey,
			ReadyTimeout:   time.Duration(cfg.LlamaServer.ReadyTimeoutSec) * time.Second,
			RequestTimeout: time.Duration(cfg.GenerateTimeoutSec) * time.Second,
			Logger:         engineLog,
		},
		Llama: manager.LlamaConfig{
			ModelsDir:   modelsDir,
			ContextSize: cfg.Llama.ContextSize,
			Threads:     cfg.Llama.Threads,
			GPULayers:   cfg.Llama.GPULayers,
			HubURL:      cfg.Llama.HubURL,
			HubToken:    cfg.Llama.HubToken,
			Logger:      engineLog,
		},
		Gemini: manager.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
			Logger: engineLog,
		},
	})
}

// newManager builds the lifecycle object around the configured engine.
func newManager(cfg config.Config, model manager.ModelSpec, log zerolog.Logger) (*manager.Manager, error) {
	engine, err := newEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	mc := cfg.ManagerConfig(engine, model)
	mc.Logger = &log
	mgr := manager.NewWithConfig(mc)
	mgr.SetEventPublisher(logPublisher{log: log.With().Str("component", "events").Logger()})
	return mgr, nil
}

// logPublisher writes manager lifecycle events to the log at debug level.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(e manager.Event) {
	p.log.Debug().Fields(e.Fields).Msg(e.Name)
}
