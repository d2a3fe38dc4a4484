package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cityling/cityling-server/internal/domain"
)

// CompanionChat runs one turn on the companion flow.
// POST /v1/companion/chat
func (h *Handler) CompanionChat(c echo.Context) error {
	return h.chat(c, domain.FlowCompanion)
}

// Generate runs one turn on the generic flow.
// POST /v1/generate
func (h *Handler) Generate(c echo.Context) error {
	return h.chat(c, domain.FlowGeneric)
}

func (h *Handler) chat(c echo.Context, flow domain.Flow) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Error: &domain.APIError{
				Message: "invalid request body",
				Type:    "invalid_request_error",
			},
		})
	}

	// Validate required fields
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Error: &domain.APIError{
				Message: "message is required",
				Type:    "invalid_request_error",
			},
		})
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentTypeText
	}
	req.Flow = flow

	ctx := c.Request().Context()

	resp, err := h.service.Chat(ctx, &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// GetSessionTurns retrieves the recorded turns of a session.
// GET /v1/sessions/:session_id/turns
func (h *Handler) GetSessionTurns(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	ctx := c.Request().Context()

	resp, err := h.service.SessionTurns(ctx, sessionID, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// writeError maps typed gateway errors to HTTP responses.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	errType := "internal_error"

	var upstreamErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		errType = "not_found"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		errType = "conflict"
	case errors.Is(err, domain.ErrUnsupportedContentType):
		status = http.StatusBadRequest
		errType = "invalid_request_error"
	case errors.Is(err, domain.ErrPolicyBlocked):
		status = http.StatusForbidden
		errType = "policy_blocked"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		status = http.StatusGatewayTimeout
		errType = "upstream_timeout"
	case errors.Is(err, domain.ErrCancelled):
		// 499 is the de-facto client-closed-request status.
		status = 499
		errType = "cancelled"
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		errType = "upstream_error"
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusInternalServerError
		errType = "store_unavailable"
	}

	return c.JSON(status, domain.ErrorResponse{
		Error: &domain.APIError{
			Message: err.Error(),
			Type:    errType,
		},
	})
}
