// Package config loads settings for the goderiv tool server.
//
// Files are YAML (.yaml, .yml) or JSON (.json). Keys that are missing or
// hold a value of the wrong type keep their defaults, and durations accept
// either a Go duration string ("15s") or a number of seconds.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds the tool server settings.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
	LogLevel          slog.Level
	Metrics           bool
	Tracing           bool
}

// Default returns the settings used when no file is given.
func Default() Server {
	return Server{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxBodyBytes:      1 << 20,
		LogLevel:          slog.LevelInfo,
	}
}

// Validate reports settings the server cannot run with.
func (s Server) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", s.MaxBodyBytes)
	}
	for name, d := range map[string]time.Duration{
		"read_header_timeout": s.ReadHeaderTimeout,
		"read_timeout":        s.ReadTimeout,
		"write_timeout":       s.WriteTimeout,
		"idle_timeout":        s.IdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	return nil
}

// Load reads path and applies it over Default.
func Load(path string) (Server, error) {
	v, err := FromFile(path)
	if err != nil {
		return Server{}, err
	}
	s := v.Server(Default())
	if err := s.Validate(); err != nil {
		return Server{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Values wraps a decoded config document.
type Values struct {
	data map[string]any
}

func New(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

// FromFile loads a document, choosing the format by extension.
func FromFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read config file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Values{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

func FromYAML(data []byte) (Values, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

func FromJSON(data []byte) (Values, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// Server applies the document over base.
func (v Values) Server(base Server) Server {
	s := base
	s.Addr = v.String("addr", s.Addr)
	s.ReadHeaderTimeout = v.Duration("read_header_timeout", s.ReadHeaderTimeout)
	s.ReadTimeout = v.Duration("read_timeout", s.ReadTimeout)
	s.WriteTimeout = v.Duration("write_timeout", s.WriteTimeout)
	s.IdleTimeout = v.Duration("idle_timeout", s.IdleTimeout)
	s.MaxBodyBytes = int64(v.Int("max_body_bytes", int(s.MaxBodyBytes)))
	s.LogLevel = v.Level("log_level", s.LogLevel)
	s.Metrics = v.Bool("metrics", s.Metrics)
	s.Tracing = v.Bool("tracing", s.Tracing)
	return s
}

func (v Values) String(key, defaultVal string) string {
	if s, ok := v.data[key].(string); ok {
		return s
	}
	return defaultVal
}

func (v Values) Bool(key string, defaultVal bool) bool {
	if b, ok := v.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int accepts int, int64 and whole float64 values.
func (v Values) Int(key string, defaultVal int) int {
	switch val := v.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := v.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return defaultVal
}

// Level parses debug, info, warn or error.
func (v Values) Level(key string, defaultVal slog.Level) slog.Level {
	s, ok := v.data[key].(string)
	if !ok {
		return defaultVal
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return defaultVal
	}
	return l
}
