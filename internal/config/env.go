package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Resolve builds the effective configuration: the optional file at path, then
// variables from envFile (missing file ignored; variables already set win),
// then environment overrides, then defaults. The result is validated.
func Resolve(path, envFile string) (Config, error) {
	var cfg Config
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is os.LookupEnv
// outside tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	str(&cfg.Addr, "CHATD_ADDR")
	str(&cfg.LogLevel, "CHATD_LOG_LEVEL")
	str(&cfg.LogFormat, "CHATD_LOG_FORMAT")
	str(&cfg.LogFile, "CHATD_LOG_FILE")
	str(&cfg.Engine, "CHATD_ENGINE")
	str(&cfg.Model.ID, "CHATD_MODEL")
	str(&cfg.Model.File, "CHATD_MODEL_FILE")
	str(&cfg.Chat.Model.ID, "CHATD_CHAT_MODEL")
	str(&cfg.Chat.Model.File, "CHATD_CHAT_MODEL_FILE")
	str(&cfg.LlamaServer.URL, "CHATD_LLAMA_SERVER_URL")
	str(&cfg.LlamaServer.APIKey, "CHATD_LLAMA_SERVER_API_KEY")
	str(&cfg.Llama.ModelsDir, "CHATD_MODELS_DIR")
	str(&cfg.Llama.HubToken, "CHATD_HUB_TOKEN", "HF_TOKEN")
	str(&cfg.Gemini.APIKey, "CHATD_GEMINI_API_KEY", "GEMINI_API_KEY")
	str(&cfg.Speech.APIKey, "CHATD_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	str(&cfg.Speech.PlayerCommand, "CHATD_PLAYER")
	if v, ok := lookup("CHATD_CORS_ORIGINS"); ok && v != "" {
		cfg.CORS.Origins = splitList(v)
	}
	for key, dst := range map[string]*int{
		"CHATD_MAX_QUEUE":            &cfg.Queue.MaxDepth,
		"CHATD_QUEUE_WAIT_MS":        &cfg.Queue.MaxWaitMS,
		"CHATD_GENERATE_TIMEOUT_SEC": &cfg.GenerateTimeoutSec,
		"CHATD_MAX_TURNS":            &cfg.Chat.MaxTurns,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
