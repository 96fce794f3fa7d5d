// Package cli wires configuration, logging and the model manager into the
// chatd command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatd/internal/config"
)

// Command actions; replaced in tests.
var (
	fnRunServe = runServe
	fnRunChat  = runChat
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	engine     string
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root := buildRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "chatd:", err)
		return 1
	}
	return 0
}

func buildRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "chatd",
		Short:         "Chat with a local or remote language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", os.Getenv("CHATD_CONFIG"), "Config file (.yaml|.yml|.json|.toml); defaults CHATD_CONFIG")
	pf.StringVar(&g.envFile, "env-file", ".env", "Dotenv file with API keys; ignored when missing")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	pf.StringVar(&g.engine, "engine", "", "Inference engine: llama-server|llama|gemini (overrides config)")

	root.AddCommand(newServeCmd(g), newChatCmd(g))

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)
	return root
}

// resolve loads the configuration and applies flag overrides on top.
func (g *globalFlags) resolve() (config.Config, error) {
	cfg, err := config.Resolve(g.configPath, g.envFile)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.engine != "" {
		cfg.Engine = g.engine
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	return cfg, nil
}
