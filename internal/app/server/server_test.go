package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"orderpulse/internal/app/hub"
	"orderpulse/internal/app/registry"
	"orderpulse/internal/app/router"
	"orderpulse/internal/app/server/handlers"
	"orderpulse/internal/config"
	"orderpulse/internal/core/domain"
	"orderpulse/internal/core/services"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceToken = "svc-token"

type memPresence struct {
	mu    sync.Mutex
	users map[domain.Role]map[string]struct{}
}

func (p *memPresence) MarkOnline(ctx context.Context, role domain.Role, userID string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.users == nil {
		p.users = map[domain.Role]map[string]struct{}{}
	}
	if p.users[role] == nil {
		p.users[role] = map[string]struct{}{}
	}
	p.users[role][userID] = struct{}{}
	return nil
}

func (p *memPresence) MarkOffline(ctx context.Context, role domain.Role, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users[role], userID)
	return nil
}

func (p *memPresence) Online(ctx context.Context, role domain.Role, window time.Duration) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for u := range p.users[role] {
		out = append(out, u)
	}
	return out, nil
}

type testEnv struct {
	srv *httptest.Server
	reg *registry.Registry
	hub *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSecret(t, "")
}

func newTestEnvWithSecret(t *testing.T, secret string) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Load()

	reg := registry.NewRegistry()
	h := hub.NewHub(log)
	presence := &memPresence{}
	tokens := services.NewTokenService(secret, "orderpulse-test", time.Hour)
	sessions := services.NewSessionService(log, reg, h, presence, tokens, time.Hour, time.Minute)
	rt := router.NewRouter(log)
	rt.Attach(h)

	s := NewServer(log, "orderpulse-test", ":0", serviceToken,
		handlers.NewWSHandler(sessions, *cfg.Hub),
		handlers.NewEventsHandler(services.NewDirectSink(rt)),
		handlers.NewDiagnosticsHandler(reg, h, presence, time.Minute),
		handlers.NewTokenHandler(tokens),
	)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, reg: reg, hub: h}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	msg := readFrame(t, conn)
	require.Equal(t, domain.TypeConnected, msg["type"])
	return conn
}

func (e *testEnv) authenticate(t *testing.T, userID, role, pharmacyID string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t)
	require.NoError(t, conn.WriteJSON(domain.AuthenticateRequest{
		Type: domain.TypeAuthenticate, UserID: userID, Role: role, PharmacyID: pharmacyID,
	}))
	msg := readFrame(t, conn)
	require.Equal(t, domain.TypeAuthenticated, msg["type"], "got %v", msg)
	return conn
}

func (e *testEnv) post(t *testing.T, path, token string, body any) int {
	t.Helper()
	status, _ := e.postJSON(t, path, token, body)
	return status
}

func (e *testEnv) postJSON(t *testing.T, path, token string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestOrderUpdateReachesEntitledSessions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.authenticate(t, "admin-1", "admin", "")
	customer := env.authenticate(t, "u9", "customer", "")
	staff := env.authenticate(t, "staff-1", "pharmacy_staff", "ph-1")
	otherStaff := env.authenticate(t, "staff-2", "pharmacy_staff", "ph-2")

	status := env.post(t, "/events/orders", serviceToken, map[string]any{
		"update_type": "created",
		"order":       map[string]any{"id": "ord-1", "customer_id": "u9", "assigned_pharmacy_id": "ph-1"},
	})
	require.Equal(t, http.StatusAccepted, status)

	for _, conn := range []*websocket.Conn{admin, customer, staff} {
		msg := readFrame(t, conn)
		assert.Equal(t, domain.TypeOrderUpdate, msg["type"])
		assert.Equal(t, "created", msg["update_type"])
		order := msg["order"].(map[string]any)
		assert.Equal(t, "ord-1", order["id"])
	}

	// The other pharmacy only sees the global beacon that follows.
	require.Equal(t, http.StatusAccepted, env.post(t, "/events/status", serviceToken, map[string]any{
		"order_id": "ord-1", "status": "ready", "updated_by": "staff-1",
	}))
	msg := readFrame(t, otherStaff)
	assert.Equal(t, domain.TypeStatusUpdate, msg["type"])
	assert.Equal(t, "ready", msg["status"])
	for _, conn := range []*websocket.Conn{admin, customer, staff} {
		assert.Equal(t, domain.TypeStatusUpdate, readFrame(t, conn)["type"])
	}
}

func TestSupersededSessionStopsReceivingUserChannel(t *testing.T) {
	env := newTestEnv(t)
	oldConn := env.authenticate(t, "u1", "customer", "")
	newConn := env.authenticate(t, "u1", "customer", "")

	require.Equal(t, http.StatusAccepted, env.post(t, "/events/orders", serviceToken, map[string]any{
		"update_type": "updated",
		"order":       map[string]any{"id": "ord-2", "customer_id": "u1"},
	}))
	require.Equal(t, http.StatusAccepted, env.post(t, "/events/status", serviceToken, map[string]any{
		"order_id": "ord-2", "status": "dispatched", "updated_by": "admin-1",
	}))

	assert.Equal(t, domain.TypeOrderUpdate, readFrame(t, newConn)["type"])
	assert.Equal(t, domain.TypeStatusUpdate, readFrame(t, newConn)["type"])
	// The old session is still open but only gets the global beacon.
	assert.Equal(t, domain.TypeStatusUpdate, readFrame(t, oldConn)["type"])

	require.NoError(t, oldConn.Close())
	require.Eventually(t, func() bool { return env.hub.SessionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	rec, ok := env.reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, []string{rec.SessionID}, env.hub.Members("user:u1"))
}

func TestAuthenticateUnknownRoleIsRejected(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteJSON(domain.AuthenticateRequest{Type: domain.TypeAuthenticate, UserID: "u1", Role: "root"}))
	msg := readFrame(t, conn)
	assert.Equal(t, domain.TypeError, msg["type"])
	assert.Equal(t, "unknown_role", msg["code"])
	assert.Equal(t, 0, env.reg.Count())
}

func TestPingAndUnsupportedFrames(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, domain.TypePong, readFrame(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe"}))
	assert.Equal(t, "unsupported", readFrame(t, conn)["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "bad_request", readFrame(t, conn)["code"])
}

func TestDisconnectDropsRegistryEntry(t *testing.T) {
	env := newTestEnv(t)
	conn := env.authenticate(t, "u5", "delivery_officer", "")
	require.Equal(t, 1, env.reg.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventIntakeRequiresServiceToken(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"order_id": "o", "status": "s"}

	assert.Equal(t, http.StatusUnauthorized, env.post(t, "/events/status", "", body))
	assert.Equal(t, http.StatusUnauthorized, env.post(t, "/events/status", "wrong", body))
	assert.Equal(t, http.StatusAccepted, env.post(t, "/events/status", serviceToken, body))
}

func TestEventIntakeRejectsInvalidEvents(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.post(t, "/events/orders", serviceToken, map[string]any{"update_type": "created"}))
	assert.Equal(t, http.StatusBadRequest, env.post(t, "/events/status", serviceToken, map[string]any{"order_id": "o"}))
}

func TestDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t, "staff-1", "pharmacy_staff", "ph-1")

	get := func(path string, withToken bool) (*http.Response, map[string]any) {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+path, nil)
		require.NoError(t, err)
		if withToken {
			req.Header.Set("Authorization", "Bearer "+serviceToken)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		if resp.Header.Get("Content-Type") == "application/json" {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		}
		return resp, body
	}

	resp, body := get("/healthz", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["users"])

	resp, body = get("/connections/staff-1", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pharmacy_staff", body["role"])
	assert.ElementsMatch(t, []any{"pharmacy:ph-1", "role:pharmacy_staff", "user:staff-1"}, body["channels"])

	resp, body = get("/connections", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["connections"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "staff-1", list[0].(map[string]any)["user_id"])

	resp, _ = get("/connections", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get("/connections/nobody", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/connections/staff-1", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = get("/presence/pharmacy_staff", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"staff-1"}, body["users"])

	resp, _ = get("/presence/wizard", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssuedTokenAuthenticatesSession(t *testing.T) {
	env := newTestEnvWithSecret(t, "secret")

	status, body := env.postJSON(t, "/tokens", serviceToken, map[string]any{
		"user_id": "staff-9", "role": "pharmacy_staff", "pharmacy_id": "ph-3",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 3600, body["expires_in"])
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(domain.AuthenticateRequest{Type: domain.TypeAuthenticate, UserID: "staff-9", Role: "admin"}))
	assert.Equal(t, "invalid_token", readFrame(t, conn)["code"])

	require.NoError(t, conn.WriteJSON(domain.AuthenticateRequest{Type: domain.TypeAuthenticate, Token: tok}))
	msg := readFrame(t, conn)
	require.Equal(t, domain.TypeAuthenticated, msg["type"])
	assert.Equal(t, "pharmacy_staff", msg["role"])
	assert.Equal(t, []string{sessionOf(t, env, "staff-9")}, env.hub.Members("pharmacy:ph-3"))
}

func sessionOf(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	rec, ok := env.reg.Lookup(userID)
	require.True(t, ok)
	return rec.SessionID
}

func TestTokenIssueRules(t *testing.T) {
	env := newTestEnvWithSecret(t, "secret")
	body := map[string]any{"user_id": "u1", "role": "customer"}

	assert.Equal(t, http.StatusUnauthorized, env.post(t, "/tokens", "", body))
	assert.Equal(t, http.StatusBadRequest, env.post(t, "/tokens", serviceToken, map[string]any{"user_id": "u1", "role": "root"}))
	assert.Equal(t, http.StatusBadRequest, env.post(t, "/tokens", serviceToken, map[string]any{"role": "customer"}))

	disabled := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, disabled.post(t, "/tokens", serviceToken, body))
}
