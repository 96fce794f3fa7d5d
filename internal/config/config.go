package config

import (
	"fmt"
	"strings"
	"time"

	"chatd/internal/manager"
)

// Config holds runtime parameters for both the server and the chat client.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// LogFile receives the chat client's log; the terminal belongs to the UI.
	LogFile string `json:"log_file" yaml:"log_file" toml:"log_file"`
	// RequestLog is the default per-request log level of the HTTP API.
	RequestLog string `json:"request_log" yaml:"request_log" toml:"request_log"`

	Engine      string            `json:"engine" yaml:"engine" toml:"engine"`
	Model       ModelConfig       `json:"model" yaml:"model" toml:"model"`
	LlamaServer LlamaServerConfig `json:"llama_server" yaml:"llama_server" toml:"llama_server"`
	Llama       LlamaConfig       `json:"llama" yaml:"llama" toml:"llama"`
	Gemini      GeminiConfig      `json:"gemini" yaml:"gemini" toml:"gemini"`

	Queue              QueueConfig `json:"queue" yaml:"queue" toml:"queue"`
	GenerateTimeoutSec int         `json:"generate_timeout_sec" yaml:"generate_timeout_sec" toml:"generate_timeout_sec"`
	MaxBodyBytes       int64       `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS               CORSConfig  `json:"cors" yaml:"cors" toml:"cors"`

	Chat   ChatConfig   `json:"chat" yaml:"chat" toml:"chat"`
	Speech SpeechConfig `json:"speech" yaml:"speech" toml:"speech"`
}

// ModelConfig identifies the model and how to load it.
type ModelConfig struct {
	ID       string            `json:"id" yaml:"id" toml:"id"`
	Revision string            `json:"revision" yaml:"revision" toml:"revision"`
	File     string            `json:"file" yaml:"file" toml:"file"`
	Dtype    map[string]string `json:"dtype" yaml:"dtype" toml:"dtype"`
	Device   string            `json:"device" yaml:"device" toml:"device"`
}

type LlamaServerConfig struct {
	URL             string `json:"url" yaml:"url" toml:"url"`
	APIKey          string `json:"api_key" yaml:"api_key" toml:"api_key"`
	ReadyTimeoutSec int    `json:"ready_timeout_sec" yaml:"ready_timeout_sec" toml:"ready_timeout_sec"`
}

type LlamaConfig struct {
	ModelsDir   string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	HubURL      string `json:"hub_url" yaml:"hub_url" toml:"hub_url"`
	HubToken    string `json:"hub_token" yaml:"hub_token" toml:"hub_token"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model  string `json:"model" yaml:"model" toml:"model"`
}

// QueueConfig bounds generation admission.
type QueueConfig struct {
	MaxDepth      int `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
	MaxWaitMS     int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	RetryAfterSec int `json:"retry_after_sec" yaml:"retry_after_sec" toml:"retry_after_sec"`
}

type CORSConfig struct {
	Disabled bool     `json:"disabled" yaml:"disabled" toml:"disabled"`
	Origins  []string `json:"origins" yaml:"origins" toml:"origins"`
}

// ChatConfig configures the terminal client.
type ChatConfig struct {
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	// MaxTurns windows the history sent to the engine; 0 sends all of it.
	MaxTurns int `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	// Model replaces the top-level model for the client when its ID is set.
	Model ModelConfig `json:"model" yaml:"model" toml:"model"`
}

// SpeechConfig configures reply narration; an empty APIKey disables it.
type SpeechConfig struct {
	APIKey          string  `json:"api_key" yaml:"api_key" toml:"api_key"`
	VoiceID         string  `json:"voice_id" yaml:"voice_id" toml:"voice_id"`
	ModelID         string  `json:"model_id" yaml:"model_id" toml:"model_id"`
	Stability       float64 `json:"stability" yaml:"stability" toml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" yaml:"similarity_boost" toml:"similarity_boost"`
	// PlayerCommand plays an mp3 file passed as last argument, e.g. "mpv --no-video".
	PlayerCommand string `json:"player_command" yaml:"player_command" toml:"player_command"`
	// OutputDir keeps the audio files instead of playing them when PlayerCommand is empty.
	OutputDir  string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
}

// Defaults of the two variants.
const (
	DefaultAddr         = ":3001"
	DefaultServerModel  = "onnx-community/gemma-3n-E2B-it-ONNX"
	DefaultChatModel    = "onnx-community/Qwen2.5-0.5B-Instruct"
	DefaultLlamaURL     = "http://127.0.0.1:8080"
	DefaultModelsDir    = "~/.cache/chatd/models"
	DefaultLogFile      = "~/.cache/chatd/chat.log"
	DefaultSpeechOutput = "~/.cache/chatd/speech"
)

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.RequestLog == "" {
		c.RequestLog = "off"
	}
	if c.Engine == "" {
		c.Engine = manager.EngineLlamaServer
	}
	if c.Model.ID == "" {
		c.Model.ID = DefaultServerModel
		if c.Model.Dtype == nil {
			c.Model.Dtype = map[string]string{
				"embed_tokens":         "q8",
				"audio_encoder":        "q8",
				"vision_encoder":       "fp16",
				"decoder_model_merged": "q4",
			}
		}
	}
	if c.Model.Device == "" {
		c.Model.Device = string(manager.DeviceCPU)
	}
	if c.Chat.Model.ID == "" {
		c.Chat.Model = ModelConfig{
			ID:     DefaultChatModel,
			Dtype:  map[string]string{"model": "q4"},
			Device: string(manager.DeviceGPU),
		}
	}
	if c.Chat.Model.Device == "" {
		c.Chat.Model.Device = string(manager.DeviceGPU)
	}
	if c.LlamaServer.URL == "" {
		c.LlamaServer.URL = DefaultLlamaURL
	}
	if c.LlamaServer.ReadyTimeoutSec == 0 {
		c.LlamaServer.ReadyTimeoutSec = 600
	}
	if c.Llama.ModelsDir == "" {
		c.Llama.ModelsDir = DefaultModelsDir
	}
	if c.Llama.ContextSize == 0 {
		c.Llama.ContextSize = 4096
	}
	if c.Llama.GPULayers == 0 {
		c.Llama.GPULayers = 99
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Queue.MaxDepth == 0 {
		c.Queue.MaxDepth = 32
	}
	if c.Queue.MaxWaitMS == 0 {
		c.Queue.MaxWaitMS = 30000
	}
	if c.Queue.RetryAfterSec == 0 {
		c.Queue.RetryAfterSec = 1
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"*"}
	}
	if c.Speech.OutputDir == "" {
		c.Speech.OutputDir = DefaultSpeechOutput
	}
	if c.Speech.TimeoutSec == 0 {
		c.Speech.TimeoutSec = 30
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case manager.EngineLlamaServer, manager.EngineLlama:
	case manager.EngineGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("engine %q requires gemini.api_key (or GEMINI_API_KEY)", c.Engine)
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Queue.MaxDepth < 0 || c.Queue.MaxWaitMS < 0 || c.GenerateTimeoutSec < 0 {
		return fmt.Errorf("queue and timeout values must not be negative")
	}
	if c.Chat.MaxTurns < 0 {
		return fmt.Errorf("chat.max_turns must not be negative")
	}
	return nil
}

// ServerModel is the model spec of the HTTP server.
func (c Config) ServerModel() manager.ModelSpec { return c.Model.spec() }

// ChatModel is the model spec of the terminal client.
func (c Config) ChatModel() manager.ModelSpec { return c.Chat.Model.spec() }

func (m ModelConfig) spec() manager.ModelSpec {
	return manager.ModelSpec{
		ID:       m.ID,
		Revision: m.Revision,
		File:     m.File,
		Options:  manager.LoadOptions{Dtype: m.Dtype, Device: manager.Device(strings.ToLower(m.Device))},
	}
}

// ManagerConfig builds the lifecycle tunables for engine and model.
func (c Config) ManagerConfig(engine manager.Engine, model manager.ModelSpec) manager.ManagerConfig {
	return manager.ManagerConfig{
		Engine:          engine,
		Model:           model,
		MaxQueueDepth:   c.Queue.MaxDepth,
		MaxWait:         time.Duration(c.Queue.MaxWaitMS) * time.Millisecond,
		GenerateTimeout: time.Duration(c.GenerateTimeoutSec) * time.Second,
	}
}
