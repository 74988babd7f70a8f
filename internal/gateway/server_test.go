package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/coordinator"
	"github.com/soyeahso/switchboard/internal/directory"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/presence"
	"github.com/soyeahso/switchboard/internal/session"
	"github.com/soyeahso/switchboard/internal/store"
)

const testToken = "sekrit"

func testServer(t *testing.T) (*httptest.Server, *presence.Hub) {
	t.Helper()

	log := logging.New(nil, "silent", "json")
	dir := directory.NewStatic([]domain.Agent{
		{ID: "sup1", Roles: []string{"supervisor"},
			Routing: domain.RoutingAddress{Extension: "2000", Host: "pbx1"}},
		{ID: "a1", SupervisorID: "sup1",
			Routing: domain.RoutingAddress{Extension: "1001", Host: "pbx1"}},
		{ID: "a2", SupervisorID: "sup1",
			Routing: domain.RoutingAddress{Extension: "1002", Host: "pbx1"}},
	})
	gk := session.NewGatekeeper(store.NewMemorySessionStore(), nil, log)
	hub := presence.NewHub(5 * time.Second)
	coord := coordinator.New(gk, dir, directory.NewResolver(dir), hub, nil, log)

	s := New(config.GatewayConfig{Auth: config.GatewayAuth{Token: testToken}}, coord, 20*time.Millisecond, log)

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	ts := httptest.NewServer(withMiddleware(mux, log))
	t.Cleanup(ts.Close)
	return ts, hub
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"agentId":"a1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RejectsWrongToken(t *testing.T) {
	ts, _ := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/presence?viewer=sup1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_HealthNeedsNoToken(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestGateway_LoginLogoutRoundTrip(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/login", loginRequest{AgentID: "a1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	opened := decode[domain.Session](t, resp)
	assert.Equal(t, "a1", opened.AgentID)
	assert.NotEmpty(t, opened.ID)

	// Second login conflicts and reports the existing session.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/login", loginRequest{AgentID: "a1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decode[struct {
		Error           string         `json:"error"`
		ExistingSession domain.Session `json:"existingSession"`
	}](t, resp)
	assert.Equal(t, "already_active", conflict.Error)
	assert.Equal(t, opened.ID, conflict.ExistingSession.ID)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/logout", logoutRequest{AgentID: "a1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decode[domain.Session](t, resp)
	assert.Equal(t, opened.ID, closed.ID)
	assert.NotNil(t, closed.ClosedAt)
}

func TestGateway_LogoutWithoutSession(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/logout", logoutRequest{AgentID: "a1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "no_active_session", body.Error)
}

func TestGateway_LoginUnknownAgent(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/login", loginRequest{AgentID: "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "unknown_agent", body.Error)
}

func TestGateway_ForceLogout(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/login", loginRequest{AgentID: "a1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/agents/a1/force-logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/agents/a1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[coordinator.AgentStatus](t, resp)
	assert.False(t, st.Active)
}

func TestGateway_Status(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/agents/a2/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[coordinator.AgentStatus](t, resp)
	assert.Equal(t, "a2", st.AgentID)
	assert.False(t, st.Active)
	assert.Nil(t, st.LastOpenedAt)
}

func TestGateway_PresenceSnapshot(t *testing.T) {
	ts, hub := testServer(t)
	now := time.Now()
	hub.Publish(domain.PresenceRecord{AgentID: "a1", Status: domain.StatusBusy, SampledAt: now})
	hub.Publish(domain.PresenceRecord{AgentID: "a2", Status: domain.StatusAvailable, SampledAt: now})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/presence?viewer=sup1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[coordinator.PresenceView](t, resp)
	require.Len(t, view.Records, 3)
	assert.Equal(t, 1, view.BusyCount)
	assert.Equal(t, "a1", view.Records[0].AgentID)
}

func TestGateway_PresenceRequiresViewer(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/presence", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_PresenceStream(t *testing.T) {
	ts, hub := testServer(t)
	hub.Publish(domain.PresenceRecord{AgentID: "a1", Status: domain.StatusOnBreak, SampledAt: time.Now()})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/presence?viewer=sup1&token=" + testToken
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var first coordinator.PresenceView
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "sup1", first.ViewerID)
	require.Len(t, first.Records, 3)

	// A new sample shows up on a later push without reconnecting.
	hub.Publish(domain.PresenceRecord{AgentID: "a2", Status: domain.StatusBusy, SampledAt: time.Now()})
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "busy sample never streamed")
		var view coordinator.PresenceView
		require.NoError(t, conn.ReadJSON(&view))
		if view.BusyCount == 1 {
			break
		}
	}
}

func TestGateway_PresenceStreamUnknownViewer(t *testing.T) {
	ts, _ := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/presence?viewer=ghost&token=" + testToken
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GatewayConfig
		want string
	}{
		{"default loopback", config.GatewayConfig{Port: 18790}, "127.0.0.1:18790"},
		{"loopback explicit", config.GatewayConfig{Bind: "loopback", Port: 18790}, "127.0.0.1:18790"},
		{"lan", config.GatewayConfig{Bind: "lan", Port: 80}, "0.0.0.0:80"},
		{"custom host", config.GatewayConfig{Bind: "custom", CustomBindHost: "10.0.0.5", Port: 9}, "10.0.0.5:9"},
		{"custom without host", config.GatewayConfig{Bind: "custom", Port: 9}, "0.0.0.0:9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
		})
	}
}
