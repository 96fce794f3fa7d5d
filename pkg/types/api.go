package types

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	// User message to answer.
	// example: Write a haiku about the ocean.
	Message string `json:"message" example:"Write a haiku about the ocean."`
}

// ChatResponse is returned by POST /api/chat on success.
type ChatResponse struct {
	// Generated assistant reply. Never empty.
	// example: Waves fold into foam...
	Reply string `json:"reply" example:"Waves fold into foam..."`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Message is required
	Error string `json:"error" example:"Message is required"`
	// Present on 503 responses while the model is still loading.
	LoadingProgress *LoadingProgress `json:"loadingProgress,omitempty"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	// Always "running" while the process serves requests.
	// example: running
	Status string `json:"status" example:"running"`
	// True once the model finished loading.
	// example: true
	ModelLoaded bool `json:"modelLoaded" example:"true"`
	// True while a load attempt is in progress.
	// example: false
	IsLoading bool `json:"isLoading" example:"false"`
	// Current load progress.
	LoadingProgress LoadingProgress `json:"loadingProgress"`
}
