// Package router maps a request's flow and content type to an upstream
// routing decision. The router holds no state beyond the deployment
// configuration it was built from.
package router

import (
	"time"

	"github.com/cityling/cityling-server/internal/domain"
)

// Router resolves routing decisions for one upstream provider. The decision
// carries the full credential set so a multi-provider router could replace
// this one without changing callers.
type Router struct {
	baseURL string
	apiKey  string
	tenant  domain.TenantScope

	visionGPTType int
	textGPTType   int

	companionModel string

	genericTimeout   time.Duration
	companionTimeout time.Duration
}

// Config holds the deployment-fixed routing inputs.
type Config struct {
	BaseURL        string
	APIKey         string
	Tenant         domain.TenantScope
	VisionGPTType  int
	TextGPTType    int
	CompanionModel string

	GenericTimeout   time.Duration
	CompanionTimeout time.Duration
}

// New creates a router from deployment configuration.
func New(cfg Config) *Router {
	return &Router{
		baseURL:          cfg.BaseURL,
		apiKey:           cfg.APIKey,
		tenant:           cfg.Tenant,
		visionGPTType:    cfg.VisionGPTType,
		textGPTType:      cfg.TextGPTType,
		companionModel:   cfg.CompanionModel,
		genericTimeout:   cfg.GenericTimeout,
		companionTimeout: cfg.CompanionTimeout,
	}
}

// Route resolves the model-type code, credentials, and timeout budget for a
// request. It is pure and deterministic. An unrecognized content type is a
// caller error, not a routing decision: there is no silent default.
func (r *Router) Route(flow domain.Flow, contentType domain.ContentType) (domain.Decision, error) {
	var gptType int
	switch contentType {
	case domain.ContentTypeVision:
		gptType = r.visionGPTType
	case domain.ContentTypeText:
		gptType = r.textGPTType
	default:
		return domain.Decision{}, domain.ErrUnsupportedContentType
	}

	decision := domain.Decision{
		GPTType: gptType,
		BaseURL: r.baseURL,
		APIKey:  r.apiKey,
		Tenant:  r.tenant,
		Timeout: r.genericTimeout,
	}
	if flow == domain.FlowCompanion {
		decision.Model = r.companionModel
		decision.Timeout = r.companionTimeout
	}
	return decision, nil
}
