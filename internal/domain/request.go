package domain

// ChatRequest is the request to run one chat turn through the gateway.
type ChatRequest struct {
	SessionID   string      `json:"session_id,omitempty"`
	ContentType ContentType `json:"content_type"`
	Message     string      `json:"message"`
	Flow        Flow        `json:"-"`
}

// ChatResponse is returned for a completed turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Seq       int64  `json:"seq"`
	Reply     string `json:"reply"`
	Model     string `json:"model,omitempty"`
	GPTType   int    `json:"gpt_type"`
	LatencyMs int64  `json:"latency_ms"`
}

// TurnsResponse lists the recorded turns of a session.
type TurnsResponse struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}

// APIError is the error payload shape at the HTTP boundary.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}
