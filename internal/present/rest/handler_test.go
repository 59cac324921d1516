package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/repository"
	"github.com/rolfenpp/ChronoBit-API/internal/present/rest/middleware"
	"github.com/rolfenpp/ChronoBit-API/internal/service"
	"github.com/rolfenpp/ChronoBit-API/internal/usecase"
)

type testServer struct {
	e        *echo.Echo
	auth     *service.AuthService
	identity *repository.MemoryIdentityRepository
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithSignal(t, nil)
}

func newTestServerWithSignal(t *testing.T, signal *service.SignalService) *testServer {
	t.Helper()

	var publisher usecase.ClaimPublisher
	if signal != nil {
		publisher = signal
	}

	identity := repository.NewMemoryIdentityRepository()
	claimUC := usecase.NewClaimUsecase(repository.NewMemoryClaimRepository(), identity, publisher)
	auth := service.NewAuthService(service.AuthConfig{Secret: "test-secret"}, identity)

	h := NewHandler(claimUC, signal, middleware.NewAuthMiddleware(auth), RateLimiter(100, 100))

	e := echo.New()
	h.RegisterRoutes(e)
	return &testServer{e: e, auth: auth, identity: identity}
}

func (s *testServer) token(t *testing.T, user, email string) string {
	t.Helper()
	token, err := s.auth.Issue(user, email, time.Hour)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return token
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	s.e.ServeHTTP(res, req)
	return res
}

const claimBody = `{"start":"2025-03-01T09:00:00Z","end":"2025-03-01T10:00:00Z","message":"standup"}`

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	res := s.do(http.MethodGet, "/health", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
}

func TestHandleClaimRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/claims/claim", "", claimBody)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/claim", "not-a-jwt", claimBody)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token got %d", res.Code)
	}

	res = s.do(http.MethodGet, "/claims/mine", "", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestHandleClaimCreateAndConflict(t *testing.T) {
	s := newTestServer(t)
	u1 := s.token(t, "U1", "u1@example.com")

	res := s.do(http.MethodPost, "/claims/claim", u1, claimBody)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var created domain.TimeClaim
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if created.ID != 1 || created.OwnerID != "U1" {
		t.Fatalf("unexpected claim %+v", created)
	}

	res = s.do(http.MethodPost, "/claims/claim", u1, `{"start":"2025-03-01T09:30:00Z","end":"2025-03-01T09:45:00Z"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for conflict got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/claim", u1, `{"start":"2025-03-01T10:00:00Z","end":"2025-03-01T10:00:00Z"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty range got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/claim", u1, `{"start":"2025-03-01T10:00:00Z","end":"2025-03-01T11:00:00Z"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected touching claim to succeed got %d", res.Code)
	}
}

func TestHandleListingsRedactOwner(t *testing.T) {
	s := newTestServer(t)
	u1 := s.token(t, "U1", "u1@example.com")
	if res := s.do(http.MethodPost, "/claims/claim", u1, claimBody); res.Code != http.StatusOK {
		t.Fatalf("create failed: %d", res.Code)
	}

	for _, path := range []string{"/claims", "/claims/all"} {
		res := s.do(http.MethodGet, path, "", "")
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, res.Code)
		}
		if strings.Contains(res.Body.String(), "U1") || strings.Contains(res.Body.String(), "ownerId") {
			t.Fatalf("%s leaked owner: %s", path, res.Body.String())
		}
	}

	res := s.do(http.MethodGet, "/claims", u1, "")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"ownerId":"U1"`) {
		t.Fatalf("expected own full records, got %d %s", res.Code, res.Body.String())
	}
}

func TestHandleAvailable(t *testing.T) {
	s := newTestServer(t)
	u1 := s.token(t, "U1", "u1@example.com")
	s.do(http.MethodPost, "/claims/claim", u1, claimBody)

	res := s.do(http.MethodGet, "/claims/available?from=2025-03-01T08:00:00Z&to=2025-03-01T12:00:00Z", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	var avail domain.Availability
	if err := json.Unmarshal(res.Body.Bytes(), &avail); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(avail.Claimed) != 1 || avail.Claimed[0].Start.Hour() != 9 || avail.Claimed[0].End.Hour() != 10 {
		t.Fatalf("unexpected claimed %+v", avail.Claimed)
	}

	res = s.do(http.MethodGet, "/claims/available?from=2025-03-01T12:00:00Z&to=2025-03-01T08:00:00Z", "", "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}

	res = s.do(http.MethodGet, "/claims/available?from=yesterday&to=2025-03-01T08:00:00Z", "", "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparsable from got %d", res.Code)
	}
}

func TestHandleTransfer(t *testing.T) {
	s := newTestServer(t)
	u1 := s.token(t, "U1", "u1@example.com")
	u2 := s.token(t, "U2", "u2@example.com")
	if err := s.identity.Remember(context.Background(), domain.Identity{ID: "U2", Email: "u2@example.com"}); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	s.do(http.MethodPost, "/claims/claim", u1, claimBody)

	res := s.do(http.MethodPost, "/claims/transfer/1", u2, `"u1@example.com"`)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/transfer/1", u1, `"nobody@example.com"`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown target got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/transfer/abc", u1, `"u2@example.com"`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id got %d", res.Code)
	}

	res = s.do(http.MethodPost, "/claims/transfer/1", u1, `{"email":"U2@example.com"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	res = s.do(http.MethodGet, "/claims/mine", u2, "")
	if !strings.Contains(res.Body.String(), `"ownerId":"U2"`) {
		t.Fatalf("expected U2 to own the claim: %s", res.Body.String())
	}
	res = s.do(http.MethodGet, "/claims/mine", u1, "")
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected U1 to own nothing: %s", res.Body.String())
	}
}

func TestHandleSummary(t *testing.T) {
	s := newTestServer(t)
	u1 := s.token(t, "U1", "")

	res := s.do(http.MethodGet, "/claims/summary", u1, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without claims got %d", res.Code)
	}

	s.do(http.MethodPost, "/claims/claim", u1, claimBody)
	res = s.do(http.MethodGet, "/claims/summary", u1, "")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"totalHours":1`) {
		t.Fatalf("unexpected summary %d %s", res.Code, res.Body.String())
	}
}

func TestHandleRealtimeWithoutSignal(t *testing.T) {
	s := newTestServer(t)
	res := s.do(http.MethodGet, "/claims/realtime", "", "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", res.Code)
	}
}

func TestHandleRealtimeStreamsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newTestServerWithSignal(t, service.NewSignalService(rdb))
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/claims/realtime", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(domain.ClaimEventChannel)[domain.ClaimEventChannel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("realtime feed never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	u1 := s.token(t, "U1", "u1@example.com")
	if res := s.do(http.MethodPost, "/claims/claim", u1, claimBody); res.Code != http.StatusOK {
		t.Fatalf("create failed: %d", res.Code)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(msg), `"type":"claim.created"`) {
		t.Fatalf("unexpected event %s", msg)
	}
	if strings.Contains(string(msg), "U1") || strings.Contains(string(msg), "ownerId") {
		t.Fatalf("event leaked owner: %s", msg)
	}
}

func TestParseTransferTarget(t *testing.T) {
	for body, want := range map[string]string{
		`"a@example.com"`:            "a@example.com",
		`{"email":" b@example.com "}`: "b@example.com",
	} {
		got, err := parseTransferTarget([]byte(body))
		if err != nil || got != want {
			t.Fatalf("parse %s: got %q, %v", body, got, err)
		}
	}
	for _, body := range []string{``, `""`, `{}`, `42`} {
		if _, err := parseTransferTarget([]byte(body)); err == nil {
			t.Fatalf("expected %q to be rejected", body)
		}
	}
}
