package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-prism/prism/pkg/comm"
	"github.com/go-prism/prism/pkg/explorer"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module github.com/acme/notebooks\n\ngo 1.24.0\n")

	resolved, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.ModulePath != "github.com/acme/notebooks" {
		t.Errorf("module path = %q", resolved.ModulePath)
	}
	if resolved.AppName != "notebooks" {
		t.Errorf("app name = %q, want notebooks", resolved.AppName)
	}
	if resolved.AppID != "com.github.acme.notebooks" {
		t.Errorf("app id = %q, want com.github.acme.notebooks", resolved.AppID)
	}
	if resolved.Protocol != comm.ProtocolVersion {
		t.Errorf("protocol = %q, want %q", resolved.Protocol, comm.ProtocolVersion)
	}
	if resolved.HistoryLimit != explorer.MaxHistory {
		t.Errorf("history limit = %d, want %d", resolved.HistoryLimit, explorer.MaxHistory)
	}
	if resolved.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v, want info", resolved.LogLevel)
	}
	if resolved.Listen != ListenStdio {
		t.Errorf("listen = %q, want %q", resolved.Listen, ListenStdio)
	}
}

func TestResolveReadsYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.local/kernel\n")
	writeFile(t, dir, "prism.yaml", `
app:
  name: Sage Kernel
  id: org.sagemath.kernel
history:
  path: /var/lib/prism/history.db
  limit: 200
log:
  level: debug
serve:
  listen: "127.0.0.1:7005"
`)

	resolved, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.AppName != "Sage Kernel" {
		t.Errorf("app name = %q", resolved.AppName)
	}
	if resolved.AppID != "org.sagemath.kernel" {
		t.Errorf("app id = %q", resolved.AppID)
	}
	if resolved.HistoryPath != "/var/lib/prism/history.db" {
		t.Errorf("history path = %q", resolved.HistoryPath)
	}
	if resolved.HistoryLimit != 200 {
		t.Errorf("history limit = %d", resolved.HistoryLimit)
	}
	if resolved.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", resolved.LogLevel)
	}
	if resolved.Listen != "127.0.0.1:7005" {
		t.Errorf("listen = %q", resolved.Listen)
	}
}

func TestResolveRejectsUnknownProtocol(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.local/kernel\n")
	writeFile(t, dir, "prism.yaml", "session:\n  protocol: \"3.0.0\"\n")

	if _, err := Resolve(dir); err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
}

func TestResolveRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.local/kernel\n")
	writeFile(t, dir, "prism.yaml", "log:\n  level: loud\n")

	if _, err := Resolve(dir); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestDefaultAppIDWithoutHost(t *testing.T) {
	if got := defaultAppID("kernel", "My App"); got != "com.example.myapp" {
		t.Errorf("app id = %q, want com.example.myapp", got)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}
