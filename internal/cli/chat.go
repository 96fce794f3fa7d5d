package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatd/internal/chat"
	"chatd/internal/config"
	"chatd/internal/logging"
	"chatd/internal/speech"
	"chatd/internal/tui"
)

func newChatCmd(g *globalFlags) *cobra.Command {
	var (
		mute     bool
		maxTurns int
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model in the terminal",
		Long:  "Loads the model in-process and opens a terminal chat. Replies are read out loud when an ElevenLabs API key is configured.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve()
			if err != nil {
				return err
			}
			if mute {
				cfg.Speech.APIKey = ""
			}
			if cmd.Flags().Changed("max-turns") {
				cfg.Chat.MaxTurns = maxTurns
			}
			log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: "json", File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer closer.Close()
			return fnRunChat(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().BoolVar(&mute, "mute", false, "Do not read replies out loud")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Send only the last N turns to the model (0 = all)")
	return cmd
}

func runChat(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	model := cfg.ChatModel()
	mgr, err := newManager(cfg, model, log)
	if err != nil {
		return err
	}
	updates, unsubscribe := mgr.Subscribe()
	defer unsubscribe()

	narrator := newNarrator(cfg, log)
	sess := chat.NewSession(mgr, chat.SessionConfig{
		SystemPrompt: cfg.Chat.SystemPrompt,
		MaxTurns:     cfg.Chat.MaxTurns,
		Speaker:      narrator,
		Logger:       log,
	})

	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()
	go func() {
		if err := mgr.Load(loadCtx); err != nil {
			log.Error().Err(err).Msg("model load failed")
		}
	}()

	p := tea.NewProgram(tui.New(sess, updates, narrator.Notices(), model.ID), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	cancelLoad()
	narrator.Wait()
	if cerr := mgr.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close model")
	}
	return err
}

// newNarrator enables speech only with an API key; without one the chat runs
// silently.
func newNarrator(cfg config.Config, log zerolog.Logger) *speech.Narrator {
	timeout := time.Duration(cfg.Speech.TimeoutSec) * time.Second
	if cfg.Speech.APIKey == "" {
		log.Warn().Msg("ELEVENLABS_API_KEY not set; replies will not be spoken")
		return speech.NewNarrator(nil, nil, timeout, log)
	}
	el := speech.NewElevenLabs(cfg.Speech.APIKey)
	if cfg.Speech.VoiceID != "" {
		el.VoiceID = cfg.Speech.VoiceID
	}
	if cfg.Speech.ModelID != "" {
		el.ModelID = cfg.Speech.ModelID
	}
	if cfg.Speech.Stability > 0 {
		el.Stability = cfg.Speech.Stability
	}
	if cfg.Speech.SimilarityBoost > 0 {
		el.SimilarityBoost = cfg.Speech.SimilarityBoost
	}
	var player speech.Player = &speech.FilePlayer{Dir: cfg.Speech.OutputDir}
	if cfg.Speech.PlayerCommand != "" {
		player = speech.CommandPlayer{Command: cfg.Speech.PlayerCommand}
	}
	return speech.NewNarrator(el, player, timeout, log)
}
