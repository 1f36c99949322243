package main

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/memval"
)

// run executes the CLI with args against a bolt file in a temp dir.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--quiet", "--backend", "bolt", "--path", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func newDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	return filepath.Join(dir, "values.db")
}

func errorCode(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestSetGetDelete(t *testing.T) {
	db := newDB(t)

	if _, err := run(t, db, "set", "theme", `"dark"`); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := run(t, db, "get", "theme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != `"dark"` {
		t.Errorf("get = %q, want \"dark\"", out)
	}

	if _, err := run(t, db, "delete", "theme"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	out, _ = run(t, db, "get", "theme")
	if strings.TrimSpace(out) != "null" {
		t.Errorf("get after delete = %q, want null", out)
	}
}

func TestGetMissingKey(t *testing.T) {
	db := newDB(t)

	out, err := run(t, db, "get", "--state", "nothing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(out, "null v") || !strings.HasSuffix(out, "\nnull\n") {
		t.Errorf("get = %q, want state line then null", out)
	}
}

func TestUpdate(t *testing.T) {
	db := newDB(t)

	for i, want := range []string{"1", "2", "3"} {
		out, err := run(t, db, "update", "visits", "(value ?? 0) + 1")
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if strings.TrimSpace(out) != want {
			t.Errorf("update %d = %q, want %s", i, out, want)
		}
	}
}

func TestUpdateMerge(t *testing.T) {
	db := newDB(t)

	run(t, db, "set", "limits", `{"max": 10}`)
	if _, err := run(t, db, "update", "limits", `merge(value, {"min": 1})`); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, _ := run(t, db, "get", "limits")
	want := "{\n  \"max\": 10,\n  \"min\": 1\n}\n"
	if out != want {
		t.Errorf("get = %q, want %q", out, want)
	}
}

func TestInvalidInput(t *testing.T) {
	db := newDB(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"invalid json", []string{"set", "k", "{nope"}, "M300"},
		{"invalid expression", []string{"update", "k", "value +"}, "M301"},
		{"failing expression", []string{"update", "k", `value.missing.deeper + 1`}, "M301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, db, tt.args...)
			if got := errorCode(err); got != tt.code {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestInvalidBackend(t *testing.T) {
	newDB(t)
	cmd := rootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--backend", "redis", "get", "k"})

	if code := errorCode(cmd.Execute()); code != "M122" {
		t.Errorf("error code = %q, want M122", code)
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", "/does/not/exist.yaml", "version", "--short"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("version = %q, want %q", out.String(), version)
	}
}

func TestShellCommands(t *testing.T) {
	value := memval.New[any]()
	var out bytes.Buffer

	shellCommand(&out, value, `set {"n": 1}`)
	shellCommand(&out, value, "update merge(value, {\"m\": 2})")
	got, _ := value.Snapshot().Get()
	m, ok := got.(map[string]any)
	if !ok || m["n"] != float64(1) || m["m"] != 2 {
		t.Errorf("value = %#v", got)
	}

	shellCommand(&out, value, "null")
	if !value.Snapshot().IsNull() {
		t.Errorf("state = %s, want null", value.Snapshot().State())
	}

	out.Reset()
	shellCommand(&out, value, "set {bad")
	if !strings.Contains(out.String(), "M300") {
		t.Errorf("output = %q, want M300", out.String())
	}

	out.Reset()
	shellCommand(&out, value, "frobnicate")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("output = %q", out.String())
	}

	if !shellCommand(&out, value, "quit") {
		t.Error("quit should end the shell")
	}
	if shellCommand(&out, value, "") {
		t.Error("empty line should not end the shell")
	}
}

func TestCheckOrigin(t *testing.T) {
	if checkOrigin(nil) != nil {
		t.Error("empty list should use the same-origin default")
	}

	all := checkOrigin([]string{"*"})
	r := httptest.NewRequest("GET", "/values/x/ws", nil)
	r.Header.Set("Origin", "https://elsewhere.test")
	if !all(r) {
		t.Error("* should allow every origin")
	}

	listed := checkOrigin([]string{"https://app.test"})
	if listed(r) {
		t.Error("unlisted origin allowed")
	}
	r.Header.Set("Origin", "https://app.test")
	if !listed(r) {
		t.Error("listed origin rejected")
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore Chdir(%q): %v", old, err)
		}
	})
}
