// Package manager owns the model lifecycle shared by the chat client and the
// HTTP server. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, readiness getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: load options, model spec and generation parameters.
//   - errors.go: error types and helpers (IsTooBusy, IsNotReady, IsLoadFailure, ...).
//   - load.go: Load, the one-shot, idempotent model acquisition.
//   - progress.go: monotonic LoadingProgress updates and subscriptions.
//   - admission.go: FIFO queueing and the single in-flight generation slot.
//   - generate.go: Generate, the gated and serialized inference entry point.
//   - status_report.go: Snapshot/Status reporting helpers.
//   - metrics.go: Prometheus collectors for load and generation.
//   - engines.go: engine selection by name.
//
// Engines:
//
//   - llama-server: an OpenAI-compatible llama.cpp HTTP server (adapter_llama_server.go).
//   - llama: in-process go-llama.cpp, enabled with `-tags=llama` (adapter_llama.go).
//     A no-CGO stub exists when the tag is not set: adapter_llama_stub.go.
//   - gemini: Google Gemini through generative-ai-go (adapter_gemini.go).
//
// The engine handle is treated as non-reentrant: every generation goes
// through the admission queue, whatever the engine.
package manager
