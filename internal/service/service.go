// Package service implements the chat gateway: admission, session
// resolution, routing, the upstream call, and turn recording.
package service

import (
	"github.com/cityling/cityling-server/internal/adapter/upstream"
	"github.com/cityling/cityling-server/internal/domain"
	"github.com/cityling/cityling-server/internal/policy"
	"github.com/cityling/cityling-server/internal/router"
	store "github.com/cityling/cityling-server/internal/repository"
)

// Service orchestrates chat turns end to end.
type Service struct {
	store    store.Store
	router   *router.Router
	upstream upstream.ChatClient
	policy   *policy.Engine
	tenant   domain.TenantScope
}

// New creates the gateway service.
func New(st store.Store, rt *router.Router, up upstream.ChatClient, pol *policy.Engine, tenant domain.TenantScope) *Service {
	return &Service{
		store:    st,
		router:   rt,
		upstream: up,
		policy:   pol,
		tenant:   tenant,
	}
}
