// Package policy evaluates chat admission policy with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision values returned by the admission policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the admission input for one chat request.
type Input struct {
	Flow        string `json:"flow"`
	ContentType string `json:"content_type"`
	AppID       string `json:"app_id"`
	PlatformID  string `json:"platform_id"`
	SessionID   string `json:"session_id"`
}

// Engine is the OPA admission engine. It is evaluated before routing, so a
// blocked request never reaches the upstream and never records a turn.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new admission engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_admission.decision"),
		rego.Module("chat_admission.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the admission policy for one request.
// Returns: decision (allow, block), reason (optional), error.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default, so an empty result set means the
		// module was edited to drop it. Fail open.
		return DecisionAllow, "default", nil
	}

	val := results[0].Expressions[0].Value
	switch v := val.(type) {
	case string:
		return v, "", nil
	case map[string]interface{}:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		if decision == "" {
			decision = DecisionAllow
		}
		return decision, reason, nil
	}

	return DecisionAllow, "unexpected return type", nil
}

// DefaultPolicy is the default admission policy content.
const DefaultPolicy = `
package chat_admission

default decision := "allow"

# Requests with no tenant scope are rejected at the edge before policy
# runs, so an empty app_id here means a misconfigured deployment.
decision := "block" if {
	input.app_id == ""
}
`
