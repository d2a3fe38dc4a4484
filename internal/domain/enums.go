// Package domain defines the core domain models for the chat gateway.
package domain

// ContentType selects which upstream model family handles a request.
type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeVision ContentType = "vision"
)

// Flow identifies which timeout budget a request runs under. The companion
// flow is the multi-turn conversational path and uses the longer budget;
// everything else is a generic one-off call. The flow is always chosen by
// the caller, never derived from the content type.
type Flow string

const (
	FlowCompanion Flow = "companion"
	FlowGeneric   Flow = "generic"
)

// TurnOutcome represents the terminal outcome of a chat turn.
type TurnOutcome string

const (
	TurnOutcomeSuccess       TurnOutcome = "SUCCESS"
	TurnOutcomeTimeout       TurnOutcome = "TIMEOUT"
	TurnOutcomeCancelled     TurnOutcome = "CANCELLED"
	TurnOutcomeUpstreamError TurnOutcome = "UPSTREAM_ERROR"
)

// IsFailure reports whether the outcome records a failed upstream attempt.
func (o TurnOutcome) IsFailure() bool {
	switch o {
	case TurnOutcomeTimeout, TurnOutcomeCancelled, TurnOutcomeUpstreamError:
		return true
	}
	return false
}
