package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/aretw0/fsmsim/pkg/adapters/http"
	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/observability"
	"github.com/aretw0/fsmsim/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toggleJSON = `{
	"name": "toggle",
	"states": [
		{"name": "Off", "is_initial": true},
		{"name": "On", "entry_action": "count = count + 1"}
	],
	"transitions": [
		{"source": "Off", "target": "On", "event": "toggle"},
		{"source": "On", "target": "Off", "event": "toggle"}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	loader, err := memory.NewFromJSON(map[string]string{"toggle": toggleJSON})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	mgr := session.NewManager(memory.NewStore(), session.WithHooks(metrics.Hooks()))

	srv := httptest.NewServer(api.NewHandler(mgr, api.WithLoader(loader), api.WithMetrics(reg)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func decodeResponse(t *testing.T, body string) api.CommandResponse {
	t.Helper()
	var out api.CommandResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out), body)
	return out
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/sessions",
		`{"machine_ref": "toggle", "config": {"initial_variables": {"count": 0}}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	out := decodeResponse(t, body)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, body = do(t, http.MethodGet, srv.URL+"/info", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"app":"fsmsim-http"`)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = do(t, http.MethodGet, srv.URL+"/machines", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["toggle"]`, body)
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp, body := do(t, http.MethodPost, base+"/step", `{"event": "toggle"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	out := decodeResponse(t, body)
	assert.Equal(t, "On", out.Snapshot.CurrentState)
	require.NotNil(t, out.Diff)
	assert.Equal(t, "On", *out.Diff.CurrentState)
	assert.NotEmpty(t, out.Log)

	resp, body = do(t, http.MethodPut, base+"/variables/count", `{"value": 41}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"count":41`)

	resp, _ = do(t, http.MethodPut, base+"/breakpoints/On", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = do(t, http.MethodPost, base+"/step", `{"event": "toggle"}`)
	assert.Equal(t, "Off", decodeResponse(t, body).Snapshot.CurrentState)
	_, body = do(t, http.MethodPost, base+"/step", `{"event": "toggle"}`)
	out = decodeResponse(t, body)
	assert.True(t, out.Snapshot.Paused)
	assert.Equal(t, []string{"On"}, out.Snapshot.StateBreakpoints)

	_, body = do(t, http.MethodPost, base+"/continue", "")
	out = decodeResponse(t, body)
	assert.True(t, out.Resumed)
	assert.EqualValues(t, 42, out.Snapshot.Variables["count"])

	resp, body = do(t, http.MethodGet, base+"/graph", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "stateDiagram-v2")
	assert.Contains(t, body, "class On active")
	assert.Contains(t, body, "class On breakpoint")

	resp, body = do(t, http.MethodGet, base+"/graph?format=dot", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "digraph toggle")

	resp, _ = do(t, http.MethodGet, base+"/graph?format=svg", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess domain.Session
	require.NoError(t, json.Unmarshal([]byte(body), &sess))
	assert.Len(t, sess.Journal, 6)

	_, body = do(t, http.MethodGet, srv.URL+"/sessions", "")
	assert.JSONEq(t, `["`+id+`"]`, body)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "fsmsim_ticks_total 3")

	resp, _ = do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Commands(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp, body := do(t, http.MethodPost, base+"/commands", `{"op": "set_variable", "name": "ratio", "value": 0.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"ratio":0.5`)

	resp, _ = do(t, http.MethodPost, base+"/commands", `{"op": "add_transition_breakpoint", "source": "Off", "target": "On", "event": "toggle"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base+"/commands", `{"op": "explode"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, base+"/variables/current_tick", `{"value": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeResponse(t, body).Snapshot.Variables)
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"Invalid Body", http.MethodPost, "/sessions", `{`, http.StatusBadRequest},
		{"Missing Machine", http.MethodPost, "/sessions", `{}`, http.StatusBadRequest},
		{"Both Machine And Ref", http.MethodPost, "/sessions", `{"machine": {"states": []}, "machine_ref": "toggle"}`, http.StatusBadRequest},
		{"Unknown Ref", http.MethodPost, "/sessions", `{"machine_ref": "nope"}`, http.StatusUnprocessableEntity},
		{"No States", http.MethodPost, "/sessions", `{"machine": {"states": []}}`, http.StatusUnprocessableEntity},
		{"Unknown Session", http.MethodPost, "/sessions/missing/step", `{"event": "x"}`, http.StatusNotFound},
		{"Unknown Session Graph", http.MethodGet, "/sessions/missing/graph", "", http.StatusNotFound},
		{"Multiline Event", http.MethodPost, "/sessions/missing/step", `{"event": "a\nb"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
		})
	}
}

func TestServer_InlineMachineHalts(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", `{
		"machine": {
			"states": [{"name": "A", "is_initial": true}, {"name": "B", "entry_action": "x = missing"}],
			"transitions": [{"source": "A", "target": "B", "event": "go"}]
		},
		"config": {"halt_on_action_error": true}
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := decodeResponse(t, body).SessionID

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/step", `{"event": "go"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	out := decodeResponse(t, body)
	assert.True(t, out.Snapshot.Halted)
	assert.Contains(t, out.Error, "fsm error")
}

func TestServer_CheckSafety(t *testing.T) {
	srv := newTestServer(t)

	_, body := do(t, http.MethodPost, srv.URL+"/check-safety", `{"code": "x = 1"}`)
	assert.Contains(t, body, `"safe":true`)

	_, body = do(t, http.MethodPost, srv.URL+"/check-safety", `{"code": "import os"}`)
	assert.Contains(t, body, `"safe":false`)
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events?watch=state", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if l := scanner.Text(); strings.HasPrefix(l, "data: ") {
				lines <- l
			}
		}
	}()
	assert.Equal(t, "data: connected", <-lines)

	// Filtered: no state change.
	do(t, http.MethodPut, base+"/variables/noise", `{"value": 1}`)
	do(t, http.MethodPost, base+"/step", `{"event": "toggle"}`)

	select {
	case l := <-lines:
		assert.Contains(t, l, `"current_state":"On"`)
		assert.NotContains(t, l, "noise")
	case <-ctx.Done():
		t.Fatal("no diff received")
	}
}

func TestStreamManager(t *testing.T) {
	sm := api.NewStreamManager(slogDiscard())
	ch, unsubscribe := sm.Subscribe("s1")
	assert.Equal(t, 1, sm.Subscribers("s1"))

	sm.Broadcast("s1", "hello")
	sm.Broadcast("other", "ignored")
	assert.Equal(t, "hello", <-ch)

	for i := 0; i < 20; i++ {
		sm.Broadcast("s1", "flood") // never blocks
	}

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, sm.Subscribers("s1"))
}
