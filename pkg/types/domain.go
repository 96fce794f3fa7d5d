package types

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation transcript.
type Message struct {
	// Author of the message.
	// example: user
	Role Role `json:"role" example:"user"`
	// Message text.
	// example: Hello!
	Content string `json:"content" example:"Hello!"`
}

// LoadStatus is the lifecycle status of the model load.
type LoadStatus string

const (
	LoadInitializing LoadStatus = "initializing"
	LoadDownloading  LoadStatus = "downloading"
	LoadReady        LoadStatus = "ready"
	LoadError        LoadStatus = "error"
)

// Terminal reports whether no further transition follows s for the same load attempt.
func (s LoadStatus) Terminal() bool { return s == LoadReady || s == LoadError }

// LoadingProgress describes the model acquisition state.
type LoadingProgress struct {
	// One of initializing, downloading, ready, error.
	// example: downloading
	Status LoadStatus `json:"status" example:"downloading"`
	// Percentage in [0,100]; omitted when the engine cannot report one.
	// example: 30
	Progress *float64 `json:"progress,omitempty" example:"30"`
	// Human readable description of the current step.
	// example: Loading model (this may take several minutes)...
	Message string `json:"message" example:"Loading model (this may take several minutes)..."`
}

// Percent returns a pointer to v clamped to [0,100], for LoadingProgress.Progress.
func Percent(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
