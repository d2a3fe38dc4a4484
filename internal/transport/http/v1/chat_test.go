package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/cityling/cityling-server/internal/adapter/upstream"
	"github.com/cityling/cityling-server/internal/domain"
	"github.com/cityling/cityling-server/internal/policy"
	store "github.com/cityling/cityling-server/internal/repository"
	"github.com/cityling/cityling-server/internal/router"
	"github.com/cityling/cityling-server/internal/service"
	"github.com/cityling/cityling-server/tests/helpers"
)

type fakeUpstream struct {
	err error
}

func (f *fakeUpstream) Chat(ctx context.Context, req *upstream.ChatRequest, decision domain.Decision) (*upstream.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.ChatResult{Content: "a reply", Latency: time.Millisecond}, nil
}

var testTenant = domain.TenantScope{AppID: "4", PlatformID: "5"}

func newTestHandler(t *testing.T, up upstream.ChatClient) (*Handler, *store.SQLiteStore) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	rt := router.New(router.Config{
		Tenant:           testTenant,
		VisionGPTType:    8102,
		TextGPTType:      8602,
		CompanionModel:   "qwen3.5-flash",
		GenericTimeout:   20 * time.Second,
		CompanionTimeout: 45 * time.Second,
	})
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	svc := service.New(st, rt, up, engine, testTenant)
	return NewHandler(svc), st
}

func postChat(e *echo.Echo, handler *Handler, path string, body interface{}) *httptest.ResponseRecorder {
	reqBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if path == "/v1/companion/chat" {
		_ = handler.CompanionChat(c)
	} else {
		_ = handler.Generate(c)
	}
	return rec
}

func TestCompanionChat(t *testing.T) {
	e := echo.New()

	t.Run("Success", func(t *testing.T) {
		handler, _ := newTestHandler(t, &fakeUpstream{})

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
			Message:     "hello",
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp domain.ChatResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, "s1", resp.SessionID)
		assert.Equal(t, int64(1), resp.Seq)
		assert.Equal(t, "a reply", resp.Reply)
		assert.Equal(t, 8602, resp.GPTType)
		assert.Equal(t, "qwen3.5-flash", resp.Model)
	})

	t.Run("Missing Message", func(t *testing.T) {
		handler, _ := newTestHandler(t, &fakeUpstream{})

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unsupported Content Type", func(t *testing.T) {
		handler, _ := newTestHandler(t, &fakeUpstream{})

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentType("audio"),
			Message:     "hello",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp domain.ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, "invalid_request_error", resp.Error.Type)
	})

	t.Run("Upstream Timeout", func(t *testing.T) {
		handler, st := newTestHandler(t, &fakeUpstream{err: domain.ErrUpstreamTimeout})

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
			Message:     "hello",
		})
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

		// The attempt is durably recorded even though the call failed.
		turns, err := st.ListTurns(context.Background(), "s1", 0)
		assert.NoError(t, err)
		assert.Len(t, turns, 1)
		assert.Equal(t, domain.TurnOutcomeTimeout, turns[0].Outcome)
	})

	t.Run("Upstream Error", func(t *testing.T) {
		handler, _ := newTestHandler(t, &fakeUpstream{err: &domain.UpstreamError{Status: 503, Detail: "overloaded"}})

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
			Message:     "hello",
		})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Cross Tenant Conflict", func(t *testing.T) {
		handler, st := newTestHandler(t, &fakeUpstream{})

		_, err := st.GetOrCreateSession(context.Background(), "s1", domain.TenantScope{AppID: "9", PlatformID: "5"})
		assert.NoError(t, err)

		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
			Message:     "hello",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGenerate(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t, &fakeUpstream{})

	rec := postChat(e, handler, "/v1/generate", domain.ChatRequest{
		ContentType: domain.ContentTypeVision,
		Message:     "describe this",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.ChatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 8102, resp.GPTType)
	assert.Empty(t, resp.Model)
}

func TestGetSessionTurns(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t, &fakeUpstream{})

	for i := 0; i < 3; i++ {
		rec := postChat(e, handler, "/v1/companion/chat", domain.ChatRequest{
			SessionID:   "s1",
			ContentType: domain.ContentTypeText,
			Message:     "hello",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("List All", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/turns", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/sessions/:session_id/turns")
		c.SetParamNames("session_id")
		c.SetParamValues("s1")

		err := handler.GetSessionTurns(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp domain.TurnsResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Equal(t, "s1", resp.SessionID)
		assert.Len(t, resp.Turns, 3)
	})

	t.Run("Limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/turns?limit=1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/sessions/:session_id/turns")
		c.SetParamNames("session_id")
		c.SetParamValues("s1")

		err := handler.GetSessionTurns(c)
		assert.NoError(t, err)

		var resp domain.TurnsResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.Len(t, resp.Turns, 1)
		assert.Equal(t, int64(3), resp.Turns[0].Seq)
	})

	t.Run("Not Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/missing/turns", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/sessions/:session_id/turns")
		c.SetParamNames("session_id")
		c.SetParamValues("missing")

		err := handler.GetSessionTurns(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t, &fakeUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Health(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
