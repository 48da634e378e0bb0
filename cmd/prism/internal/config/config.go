// Package config loads the optional prism.yaml configuration and
// resolves defaults for the prism CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/go-prism/prism/pkg/comm"
	"github.com/go-prism/prism/pkg/explorer"
)

// ListenStdio serves the session on stdin/stdout.
const ListenStdio = "stdio"

// Config represents the optional prism.yaml configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Session SessionConfig `yaml:"session"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
	Serve   ServeConfig   `yaml:"serve"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// SessionConfig contains widget session settings.
type SessionConfig struct {
	Protocol string `yaml:"protocol,omitempty"`
}

// HistoryConfig contains exploration history settings.
type HistoryConfig struct {
	Path  string `yaml:"path,omitempty"`
	Limit int    `yaml:"limit,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// ServeConfig contains host transport settings.
type ServeConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root         string
	ModulePath   string
	AppName      string
	AppID        string
	Protocol     string
	HistoryPath  string
	HistoryLimit int
	LogLevel     slog.Level
	Listen       string
}

// LoadOptional reads prism.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, "prism.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read prism.yaml: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prism.yaml: %w", err)
	}

	return &cfg, nil
}

// Resolve loads prism.yaml (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	modulePath, _ := modulePathOf(dir)

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}
	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modulePath, appName)
	}

	protocol := strings.TrimSpace(cfg.Session.Protocol)
	if protocol == "" {
		protocol = comm.ProtocolVersion
	}
	if protocol != comm.ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %q (this build speaks %s)",
			protocol, comm.ProtocolVersion)
	}

	historyPath := strings.TrimSpace(cfg.History.Path)
	if historyPath == "" {
		historyPath, err = defaultHistoryPath()
		if err != nil {
			return nil, err
		}
	}
	historyLimit := cfg.History.Limit
	if historyLimit < 0 {
		return nil, fmt.Errorf("history.limit must not be negative, got %d", historyLimit)
	}
	if historyLimit == 0 {
		historyLimit = explorer.MaxHistory
	}

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	listen := strings.TrimSpace(cfg.Serve.Listen)
	if listen == "" {
		listen = ListenStdio
	}

	return &Resolved{
		Root:         dir,
		ModulePath:   modulePath,
		AppName:      appName,
		AppID:        appID,
		Protocol:     protocol,
		HistoryPath:  historyPath,
		HistoryLimit: historyLimit,
		LogLevel:     level,
		Listen:       listen,
	}, nil
}

// FindProjectRoot walks up from the working directory looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found in %s or any parent directory", dir)
		}
		dir = parent
	}
}

// modulePathOf reads the module path from dir's go.mod, when one exists.
func modulePathOf(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	if modulePath != "" {
		parts := strings.Split(modulePath, "/")
		if name := parts[len(parts)-1]; name != "" {
			return name
		}
	}
	if base := filepath.Base(dir); base != "." && base != string(filepath.Separator) {
		return base
	}
	return "prism"
}

func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return "com.example." + sanitizeSegment(appName)
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}
	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment)
	}
	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string) string {
	var out []rune
	for _, r := range strings.ToLower(strings.TrimSpace(segment)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "app"
	}
	return string(out)
}

func defaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".prism", "history.db"), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", level)
	}
}
