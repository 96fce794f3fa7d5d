package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatd/internal/manager"
	"chatd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Progress() types.LoadingProgress
	Status() types.StatusResponse
	Generate(ctx context.Context, msgs []types.Message, params manager.GenerateParams) (string, error)
	Subscribe() (<-chan types.LoadingProgress, func())
}

// snapshotter is implemented by services that expose admission state.
type snapshotter interface {
	Snapshot() manager.Snapshot
}

type server struct {
	svc      Service
	opts     Options
	log      zerolog.Logger
	logLevel LogLevel
}

// NewMux builds the HTTP handler of the chat server.
func NewMux(svc Service, opts Options) http.Handler {
	opts = opts.withDefaults()
	s := &server{
		svc:      svc,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "http").Logger(),
		logLevel: parseLevel(opts.LogLevel),
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if opts.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORS.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/status", s.handleStatus)
	})
	r.Get("/api/status/ws", s.handleStatusWS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReadyz)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleChat answers one stateless message.
//
//	@Summary		Chat with the model
//	@Description	Sends a single user message to the model and returns its reply. No history is kept between requests.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.ChatRequest	true	"Message"
//	@Success		200		{object}	types.ChatResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/api/chat [post]
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r, s.logLevel)

	// Readiness is checked before the body, so a loading server answers 503
	// whatever the request looks like.
	if !s.svc.Ready() {
		writeNotReady(w, s.svc.Progress())
		s.logChatEnd(r, lvl, http.StatusServiceUnavailable, start, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, msgInvalidJSON)
		s.logChatEnd(r, lvl, http.StatusBadRequest, start, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, msgRequired)
		s.logChatEnd(r, lvl, http.StatusBadRequest, start, nil)
		return
	}
	if lvl >= LevelDebug {
		s.log.Debug().Str("request_id", middleware.GetReqID(r.Context())).Int("chars", len(req.Message)).Msg("chat start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(s.opts.BaseContext, r.Context())
	defer cancel()
	reply, err := s.svc.Generate(ctx, []types.Message{{Role: types.RoleUser, Content: req.Message}}, s.opts.Params)
	if err != nil {
		// If context was canceled (client disconnect or shutdown), just return.
		if r.Context().Err() != nil || s.opts.BaseContext.Err() != nil {
			s.logChatEnd(r, lvl, 499, start, err)
			return
		}
		status := s.writeChatError(w, err)
		s.logChatEnd(r, lvl, status, start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ChatResponse{Reply: reply})
	s.logChatEnd(r, lvl, http.StatusOK, start, nil)
}

// handleStatus reports the model lifecycle.
//
//	@Summary	Server and model status
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/api/status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// handleReadyz answers 200 "ready" once generations are accepted and 503 with
// the load status (or "closed") otherwise. Queue headers are set when the
// service reports them.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	state := string(s.svc.Progress().Status)
	if sn, ok := s.svc.(snapshotter); ok {
		snap := sn.Snapshot()
		w.Header().Set("X-Queue-Depth", strconv.Itoa(snap.Queued))
		w.Header().Set("X-Inflight", strconv.Itoa(snap.Inflight))
		if snap.Closed {
			state = "closed"
		}
	}
	if s.svc.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(state))
}
