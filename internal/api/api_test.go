package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/momentary"
	"lightrig/internal/preset"
	"lightrig/internal/rig"
	"lightrig/internal/show"
	"lightrig/internal/state"
	"lightrig/internal/store"
)

const testFixtures = `
groups:
  pars_big: [par1]
fixtures:
  bl_top:    {start: 1, ch: {dim: 1}}
  bl_bottom: {start: 2, ch: {dim: 1}}
  par1:      {start: 10, ch: {dim: 1, r: 2, g: 3, b: 4}, match_color: {strategy: rgb}}
`

type failingHealth struct{}

func (failingHealth) HealthCheck(context.Context) error { return errors.New("database is locked") }

type testEnv struct {
	srv  *httptest.Server
	rig  *rig.Rig
	api  *Server
	show *show.Controller
}

func newTestEnv(t *testing.T, health HealthChecker) *testEnv {
	t.Helper()
	cat, err := catalog.Build(catalog.Sources{
		Fixtures:     []byte(testFixtures),
		AIClusters:   []byte(`{"clusters": [{"key": "tech_house", "subs": ["minimal"]}]}`),
		BandClusters: []byte(`{"clusters": [{"key": "intro"}], "solo_targets": ["vox"]}`),
		Presets:      []byte(`{"band_targets": ["vox"]}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemory()
	st := state.NewHolder(logger.Discard(), mem)
	r := rig.New(logger.Discard(), cat, nil)
	m := momentary.New(logger.Discard())
	t.Cleanup(m.Stop)
	ctl := show.New(logger.Discard(), st, r, preset.New(logger.Discard(), r, mem), m, show.Options{})

	s, err := New(Deps{Logger: logger.Discard(), Show: ctl, State: st, Health: health, Version: "test"})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, rig: r, api: s, show: ctl}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decoding body: %v", method, path, err)
	}
	return resp, out
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) = nil error")
	}
	if _, err := New(Deps{Logger: logger.Discard()}); err == nil {
		t.Error("New without controller = nil error")
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	resp, body := e.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["version"] != "test" || body["ws_clients"] != 0.0 {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}

	bad := newTestEnv(t, failingHealth{})
	resp, body = bad.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Errorf("degraded health = %d %v", resp.StatusCode, body)
	}
}

func TestModeEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)
	resp, body := e.do(t, http.MethodPost, "/api/mode", `{"mode": "band", "band_cluster": "intro"}`)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("mode = %d %v", resp.StatusCode, body)
	}
	st := body["state"].(map[string]any)
	if st["mode"] != "band" {
		t.Errorf("state.mode = %v", st["mode"])
	}

	resp, body = e.do(t, http.MethodPost, "/api/mode", `{"mode": "disco"}`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != ErrCodeBadRequest {
		t.Errorf("invalid mode = %d %v", resp.StatusCode, body)
	}

	resp, _ = e.do(t, http.MethodGet, "/api/state", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET state = %d", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown command", http.MethodPost, "/api/show/control", `{"cmd": "warp"}`, http.StatusBadRequest},
		{"unknown level", http.MethodPost, "/api/levels", `{"control": "fog", "value": 1}`, http.StatusBadRequest},
		{"unknown effect target", http.MethodPost, "/api/effects", `{"target": "smoke"}`, http.StatusBadRequest},
		{"missing fixture name", http.MethodPost, "/api/fixture/set", `{"values": {"dim": 1}}`, http.StatusBadRequest},
		{"bad value map", http.MethodPost, "/api/fixture/set", `{"name": "par1", "values": {"dim": "x"}}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/mode", `{"mode":`, http.StatusBadRequest},
		{"unknown scene", http.MethodPost, "/api/scene/load", `{"name": "nope"}`, http.StatusNotFound},
		{"unknown band target", http.MethodPost, "/api/band/preset/save", `{"target": "drums"}`, http.StatusBadRequest},
		{"band preset not saved", http.MethodPost, "/api/band/preset/load", `{"target": "vox"}`, http.StatusNotFound},
		{"unknown group preset", http.MethodPost, "/api/preset/apply_group", `{"group": "pars_big", "name": "Red"}`, http.StatusNotFound},
		{"unknown momentary", http.MethodPost, "/api/momentary", `{"preset": "fog"}`, http.StatusBadRequest},
		{"no shutdown script", http.MethodPost, "/api/safe_shutdown", ``, http.StatusServiceUnavailable},
	}
	e := newTestEnv(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := e.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.want, body)
			}
			if body["ok"] != false {
				t.Errorf("ok = %v, want false", body["ok"])
			}
		})
	}
}

func TestFixtureAndScenes(t *testing.T) {
	e := newTestEnv(t, nil)
	resp, _ := e.do(t, http.MethodPost, "/api/fixture/set", `{"name": "par1", "values": {"hex": "#FF0000", "dim": 200}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fixture/set = %d", resp.StatusCode)
	}
	if v, _ := e.rig.ChannelValue("par1", "r"); v != 255 {
		t.Errorf("par1.r = %d", v)
	}

	_, body := e.do(t, http.MethodPost, "/api/scene/save", `{"name": "red"}`)
	if scenes, _ := body["scenes"].([]any); len(scenes) != 1 || scenes[0] != "red" {
		t.Errorf("scenes = %v", body["scenes"])
	}
	e.do(t, http.MethodPost, "/api/group/set", `{"group": "pars_big", "values": {"r": 0, "dim": 0}}`)
	if resp, _ := e.do(t, http.MethodPost, "/api/scene/load", `{"name": "red"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("scene/load = %d", resp.StatusCode)
	}
	if v, _ := e.rig.ChannelValue("par1", "dim"); v != 200 {
		t.Errorf("par1.dim after load = %d", v)
	}

	if resp, _ := e.do(t, http.MethodDelete, "/api/scene/red", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("delete = %d", resp.StatusCode)
	}
	if resp, _ := e.do(t, http.MethodDelete, "/api/scene/red", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d", resp.StatusCode)
	}
}

func TestBlindersEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)
	if resp, _ := e.do(t, http.MethodPost, "/api/blinders", `{"preset": "top", "momentary": false}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("blinders = %d", resp.StatusCode)
	}
	if v, _ := e.rig.ChannelValue("bl_top", "dim"); v != 255 {
		t.Errorf("bl_top = %d", v)
	}
}

func TestRehearsalEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)
	_, body := e.do(t, http.MethodPost, "/api/rehearsal", `{"save": true, "fixture": "par1", "pan_off": 4, "junk": 1}`)
	stored := body["stored"].(map[string]any)["par1"].(map[string]any)
	if stored["pan_off"] != float64(4) || stored["junk"] != nil {
		t.Errorf("stored = %v", stored)
	}

	e.do(t, http.MethodPost, "/api/rehearsal", `{"target": "vox"}`)
	if got := e.show.State().BandTarget; got != "vox" {
		t.Errorf("band target = %q", got)
	}
}

func TestClusterLists(t *testing.T) {
	e := newTestEnv(t, nil)
	_, body := e.do(t, http.MethodGet, "/api/band/clusters", "")
	if targets, _ := body["solo_targets"].([]any); len(targets) != 1 {
		t.Errorf("solo targets = %v", body["solo_targets"])
	}
	_, body = e.do(t, http.MethodGet, "/api/fixtures", "")
	if fx, _ := body["fixtures"].([]any); len(fx) != 3 {
		t.Errorf("fixtures = %v", body["fixtures"])
	}
}

func TestRequestID(t *testing.T) {
	e := newTestEnv(t, nil)
	resp, _ := e.do(t, http.MethodGet, "/api/health", "")
	if len(resp.Header.Get("X-Request-ID")) != 36 {
		t.Errorf("generated request id = %q", resp.Header.Get("X-Request-ID"))
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.Header.Get("X-Request-ID") != "abc" {
		t.Errorf("echoed request id = %q", resp2.Header.Get("X-Request-ID"))
	}
}

func TestWebSocketStateStream(t *testing.T) {
	e := newTestEnv(t, nil)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		return msg
	}

	first := read()
	if first.Type != WSTypeEvent || first.EventType != EventState {
		t.Fatalf("first message = %+v", first)
	}

	// wait for registration before changing state
	deadline := time.Now().Add(time.Second)
	for e.api.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, health := e.do(t, http.MethodGet, "/api/health", ""); health["ws_clients"] != 1.0 {
		t.Errorf("health ws_clients = %v, want 1", health["ws_clients"])
	}
	resp, err := http.Post(e.srv.URL+"/api/mode", "application/json", bytes.NewBufferString(`{"mode": "manual"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := read()
	st, _ := msg.Payload.(map[string]any)
	if msg.EventType != EventState || st["mode"] != "manual" {
		t.Errorf("broadcast = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "1"}); err != nil {
		t.Fatal(err)
	}
	if pong := read(); pong.Type != WSTypePong || pong.ID != "1" {
		t.Errorf("pong = %+v", pong)
	}
}
