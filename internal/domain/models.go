package domain

import "time"

// TenantScope identifies the application/platform a request originates from.
// It is fixed per deployment and sent with every upstream call.
type TenantScope struct {
	AppID      string `json:"app_id"`
	PlatformID string `json:"platform_id"`
}

// Session represents one ongoing conversation. Turns are append-only and
// strictly ordered by Seq.
type Session struct {
	SessionID    string      `json:"session_id"`
	Tenant       TenantScope `json:"tenant"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
	Turns        []Turn      `json:"turns,omitempty"`
}

// Turn is one request/response exchange within a session. Exactly one of
// Response and ErrorDetail is populated, depending on Outcome.
type Turn struct {
	TurnID      string      `json:"turn_id"`
	SessionID   string      `json:"session_id"`
	Seq         int64       `json:"seq"`
	ContentType ContentType `json:"content_type"`
	Flow        Flow        `json:"flow"`
	Request     string      `json:"request"`
	GPTType     int         `json:"gpt_type"`
	Model       string      `json:"model,omitempty"`
	Outcome     TurnOutcome `json:"outcome"`
	Response    string      `json:"response,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	LatencyMs   int64       `json:"latency_ms"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Decision is the resolved routing target for one request. It is ephemeral
// and never persisted as a whole; the turn records only the model fields.
type Decision struct {
	GPTType int
	Model   string
	BaseURL string
	APIKey  string
	Tenant  TenantScope
	Timeout time.Duration
}
