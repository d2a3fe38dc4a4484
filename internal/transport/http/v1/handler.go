// Package v1 provides the public HTTP handlers for the chat gateway.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cityling/cityling-server/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers gateway routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Chat API
	e.POST("/v1/companion/chat", h.CompanionChat)
	e.POST("/v1/generate", h.Generate)

	// Session history
	e.GET("/v1/sessions/:session_id/turns", h.GetSessionTurns)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
