package live

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/memval/pkg/binding"
	"github.com/vango-dev/memval/pkg/memval"
)

func newTestServer(t *testing.T) (*httptest.Server, *memval.MemoryValue[any]) {
	t.Helper()

	prefs := memval.New(memval.WithInitial[any](map[string]any{"theme": "light"}))
	reg := NewRegistry()
	if err := reg.Register("prefs", prefs); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("count", memval.New[any]()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := New(reg, &Config{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		HeartbeatInterval: time.Hour,
		Gatherer:          prometheus.NewRegistry(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, prefs
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response error = %v", err)
	}
	return resp.StatusCode, out
}

func TestServerList(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/values", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !memval.Equal[any](body["values"], []any{"count", "prefs"}) {
		t.Errorf("values = %v, want [count prefs]", body["values"])
	}
}

func TestServerGet(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/values/prefs", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["state"] != "present" || body["name"] != "prefs" {
		t.Errorf("unexpected state: %v", body)
	}
	if !memval.Equal[any](body["value"], map[string]any{"theme": "light"}) {
		t.Errorf("value = %v", body["value"])
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/values/count", "")
	if body["state"] != "undetermined" || body["value"] != nil {
		t.Errorf("expected undetermined count, got %v", body)
	}

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/values/missing", "")
	if status != http.StatusNotFound {
		t.Errorf("status for unknown value = %d, want 404", status)
	}
}

func TestServerSetAndDelete(t *testing.T) {
	ts, prefs := newTestServer(t)

	status, body := doJSON(t, http.MethodPut, ts.URL+"/values/prefs", `{"theme":"dark"}`)
	if status != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %v", status, body)
	}
	if !memval.Equal[any](prefs.Snapshot().Value(), map[string]any{"theme": "dark"}) {
		t.Errorf("container not updated: %v", prefs.Snapshot())
	}
	if body["version"] != float64(2) {
		t.Errorf("version = %v, want 2", body["version"])
	}

	_, body = doJSON(t, http.MethodPut, ts.URL+"/values/prefs", `null`)
	if body["state"] != "null" {
		t.Errorf("PUT null state = %v, want null", body["state"])
	}

	doJSON(t, http.MethodPut, ts.URL+"/values/prefs", `[1]`)
	_, body = doJSON(t, http.MethodDelete, ts.URL+"/values/prefs", "")
	if body["state"] != "null" || !prefs.Snapshot().IsNull() {
		t.Errorf("DELETE state = %v, want null", body["state"])
	}

	status, _ = doJSON(t, http.MethodPut, ts.URL+"/values/prefs", `{bad`)
	if status != http.StatusBadRequest {
		t.Errorf("status for invalid body = %d, want 400", status)
	}
}

func TestServerEval(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/values/count/eval", `{"expr":"(value ?? 0) + 5"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["value"] != float64(5) {
		t.Errorf("value = %v, want 5", body["value"])
	}

	status, body = doJSON(t, http.MethodPost, ts.URL+"/values/count/eval", `{"expr":"value +"}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status for bad expression = %d, want 422", status)
	}
	if body["error"] == nil {
		t.Error("expected an error message")
	}
}

func TestServerMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func dialStream(t *testing.T, ts *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/values/" + name + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

// readUntil reads states until one satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if match(msg) {
			return msg
		}
	}
}

func TestStreamPushesStates(t *testing.T) {
	ts, prefs := newTestServer(t)
	conn := dialStream(t, ts, "prefs")

	first := readMessage(t, conn)
	if !memval.Equal[any](first["value"], map[string]any{"theme": "light"}) {
		t.Errorf("initial push = %v", first)
	}

	prefs.Emit(memval.Literal[any](map[string]any{"theme": "dark"}))

	msg := readUntil(t, conn, func(m map[string]any) bool { return m["version"] == float64(2) })
	if !memval.Equal[any](msg["value"], map[string]any{"theme": "dark"}) {
		t.Errorf("pushed value = %v", msg["value"])
	}
}

func TestStreamOps(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialStream(t, ts, "count")
	readMessage(t, conn)

	send := func(op Op) {
		t.Helper()
		if err := conn.WriteJSON(op); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
	}

	send(Op{Op: OpSet, Value: 1})
	readUntil(t, conn, func(m map[string]any) bool { return m["value"] == float64(1) })

	send(Op{Op: OpEval, Expr: "value * 10"})
	readUntil(t, conn, func(m map[string]any) bool { return m["value"] == float64(10) })

	send(Op{Op: OpDelete})
	readUntil(t, conn, func(m map[string]any) bool { return m["state"] == "null" })

	send(Op{Op: "explode"})
	reply := readUntil(t, conn, func(m map[string]any) bool { return m["error"] != nil })
	if reply["op"] != "explode" {
		t.Errorf("error reply = %v", reply)
	}
}

func TestStreamUnknownValue(t *testing.T) {
	ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/values/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	v := memval.New[any]()

	if err := reg.Register("a", v); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("a", v); err == nil {
		t.Error("expected duplicate name error")
	}
	if err := reg.Register("", v); err == nil {
		t.Error("expected empty name error")
	}
	if err := reg.Register("b", nil); err == nil {
		t.Error("expected nil observable error")
	}

	cached := binding.For[any](v)
	reg.Remove("a")
	if _, ok := reg.Get("a"); ok {
		t.Error("expected a removed")
	}
	if binding.For[any](v) == cached {
		t.Error("expected Remove to drop the cached binding")
	}
	reg.Remove("a")
}
