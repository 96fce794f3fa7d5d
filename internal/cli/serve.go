package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chatd/internal/config"
	"chatd/internal/httpapi"
	"chatd/internal/logging"
	"chatd/internal/manager"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load the model once and serve POST /api/chat",
		Example: "  chatd serve --addr :3001\n  PORT=8080 chatd serve --engine gemini",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			defer closer.Close()
			return fnRunServe(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :3001 (overrides config and PORT)")
	return cmd
}

// runServe starts the model load and the HTTP listener side by side. A failed
// load does not stop the server: /api/status keeps reporting the error.
func runServe(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	model := cfg.ServerModel()
	mgr, err := newManager(cfg, model, log)
	if err != nil {
		return err
	}
	defer mgr.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	handler := httpapi.NewMux(mgr, httpapi.Options{
		Logger:       log,
		LogLevel:     cfg.RequestLog,
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORS:         httpapi.CORSOptions{Enabled: !cfg.CORS.Disabled, Origins: cfg.CORS.Origins},
		BaseContext:  baseCtx,
		Params:       manager.ServerParams(),
		RetryAfter:   time.Duration(cfg.Queue.RetryAfterSec) * time.Second,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := mgr.Load(gctx); err != nil {
			log.Error().Err(err).Msg("model unavailable; serving status only")
		}
		return nil
	})
	grp.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("engine", cfg.Engine).Str("model", model.ID).Msg("chatd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		// Unblock handlers waiting on generations before draining connections.
		cancelBase()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err = grp.Wait()
	log.Info().Msg("chatd stopped")
	return err
}
