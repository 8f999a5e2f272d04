package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	coachengine "github.com/exort/exort/plugin/ai/coach"
	"github.com/exort/exort/server/service/coach"
	"github.com/exort/exort/store"
)

// mockCoachService scripts the service layer so the tests cover only the
// HTTP surface.
type mockCoachService struct {
	session  *store.ChatSession
	previews []*coach.SessionPreview
	messages []*store.ChatMessage
	exchange *coach.Exchange
	events   []coachengine.StreamEvent
	err      error

	lastUserID  int32
	lastContent string
}

func (m *mockCoachService) CreateSession(_ context.Context, userID int32, _ *coach.CreateSessionRequest) (*store.ChatSession, error) {
	m.lastUserID = userID
	return m.session, m.err
}

func (m *mockCoachService) ListSessions(_ context.Context, userID int32) ([]*coach.SessionPreview, error) {
	m.lastUserID = userID
	return m.previews, m.err
}

func (m *mockCoachService) DeleteSession(_ context.Context, userID int32, _ string) error {
	m.lastUserID = userID
	return m.err
}

func (m *mockCoachService) GetMessages(_ context.Context, userID int32, _ string) ([]*store.ChatMessage, error) {
	m.lastUserID = userID
	return m.messages, m.err
}

func (m *mockCoachService) SendMessage(_ context.Context, userID int32, _ string, content string) (*coach.Exchange, error) {
	m.lastUserID = userID
	m.lastContent = content
	return m.exchange, m.err
}

func (m *mockCoachService) SendMessageStream(_ context.Context, userID int32, _ string, content string, sink coachengine.EventSink) error {
	m.lastUserID = userID
	m.lastContent = content
	if m.err != nil {
		return m.err
	}
	for _, event := range m.events {
		if err := sink(event); err != nil {
			return err
		}
	}
	return nil
}

const testSecret = "test-secret"

func newTestServer(t *testing.T, svc coach.Service) *echo.Echo {
	t.Helper()
	e := echo.New()
	api := &APIV1Service{Secret: testSecret, CoachService: svc}
	api.Register(e)
	return e
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	e := newTestServer(t, &mockCoachService{})

	rec := doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Missing authorization token")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid or expired token")

	// A token with a non-HMAC signing method is rejected by the keyfunc.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &jwt.RegisteredClaims{Subject: "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", "Bearer "+unsigned)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid or expired token")

	// A token signed with a different secret is rejected.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{Subject: "1"}).
		SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", "Bearer "+forged)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	svc := &mockCoachService{}
	e = newTestServer(t, svc)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", bearerToken(t, "42"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(42), svc.lastUserID)
}

func TestCreateCoachSession(t *testing.T) {
	svc := &mockCoachService{session: &store.ChatSession{
		UID:       "s1",
		Title:     "openings",
		GameUID:   nil,
		CreatedTs: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix(),
	}}
	e := newTestServer(t, svc)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions", `{"title":"openings"}`, bearerToken(t, "1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"id":"s1","title":"openings","gameId":null,"createdAt":"2026-01-02T03:04:05Z"}`, rec.Body.String())
}

func TestCoachSessionNotFound(t *testing.T) {
	svc := &mockCoachService{err: coach.ErrNotFound}
	e := newTestServer(t, svc)

	rec := doRequest(t, e, http.MethodDelete, "/api/v1/coach/sessions/missing", "", bearerToken(t, "1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Session not found"}`, rec.Body.String())

	rec = doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions/missing/messages", "", bearerToken(t, "1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendCoachMessageValidation(t *testing.T) {
	e := newTestServer(t, &mockCoachService{})
	auth := bearerToken(t, "1")

	rec := doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions/s1/messages", `{"content":""}`, auth)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "between 1 and 5000")

	long := `{"content":"` + strings.Repeat("a", 5001) + `"}`
	rec = doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions/s1/messages", long, auth)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCoachMessage(t *testing.T) {
	createdTs := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix()
	svc := &mockCoachService{exchange: &coach.Exchange{
		UserMessage: &store.ChatMessage{UID: "m1", Role: store.ChatMessageRoleUser, Content: "How are my openings?", CreatedTs: createdTs},
		AssistantMessage: &store.ChatMessage{
			UID: "m2", Role: store.ChatMessageRoleAssistant, Content: "Solid.",
			ToolCalls: `[{"name":"get_opening_stats","arguments":{}}]`,
			CreatedTs: createdTs,
		},
	}}
	e := newTestServer(t, svc)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions/s1/messages",
		`{"content":"How are my openings?"}`, bearerToken(t, "1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "How are my openings?", svc.lastContent)
	require.JSONEq(t, `{
		"userMessage": {"id":"m1","role":"USER","content":"How are my openings?","createdAt":"2026-01-02T03:04:05Z"},
		"assistantMessage": {
			"id":"m2","role":"ASSISTANT","content":"Solid.",
			"toolCalls":[{"name":"get_opening_stats","arguments":{}}],
			"createdAt":"2026-01-02T03:04:05Z"
		}
	}`, rec.Body.String())
}

func TestSendCoachMessageStream(t *testing.T) {
	svc := &mockCoachService{events: []coachengine.StreamEvent{
		{Type: coachengine.EventTypeToolCall, Name: "get_opening_stats", Label: "Reviewing openings"},
		{Type: coachengine.EventTypeToolResult, Name: "get_opening_stats"},
		{Type: coachengine.EventTypeText, Content: "Solid."},
	}}
	e := newTestServer(t, svc)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions/s1/messages/stream",
		`{"content":"How are my openings?"}`, bearerToken(t, "1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get(echo.HeaderContentType))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.JSONEq(t, `{"type":"tool_call","name":"get_opening_stats","label":"Reviewing openings"}`, lines[0])
	require.JSONEq(t, `{"type":"tool_result","name":"get_opening_stats"}`, lines[1])
	require.JSONEq(t, `{"type":"text","content":"Solid."}`, lines[2])
	require.Equal(t, "[DONE]", lines[3])
}

func TestSendCoachMessageStreamFailureBeforeCommit(t *testing.T) {
	svc := &mockCoachService{err: errors.New("store down")}
	e := newTestServer(t, svc)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/coach/sessions/s1/messages/stream",
		`{"content":"hi"}`, bearerToken(t, "1"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCoachDisabled(t *testing.T) {
	e := newTestServer(t, nil)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/coach/sessions", "", bearerToken(t, "1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"error":"AI coaching is not enabled"}`, rec.Body.String())
}
