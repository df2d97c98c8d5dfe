// Package logging configures the logrus logger shared by the SDK, the CLI and
// the sandbox server.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config describes logger output.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

var (
	std  *logrus.Logger
	once sync.Once
)

// Logger returns the process-wide logger.
func Logger() *logrus.Logger {
	once.Do(func() {
		std = logrus.New()
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		std.SetOutput(os.Stderr)
	})
	return std
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger().WithField("component", name)
}

// Init applies c to the process-wide logger. The returned func closes the
// log file, if one was opened.
func Init(c Config) (func(), error) {
	return Apply(Logger(), c)
}

// Apply configures l according to c.
func Apply(l *logrus.Logger, c Config) (func(), error) {
	level := logrus.InfoLevel
	if strings.TrimSpace(c.Level) != "" {
		parsed, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}
	l.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", c.Format)
	}

	noop := func() {}
	switch strings.ToLower(c.Output) {
	case "", "stderr":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	case "discard":
		l.SetOutput(io.Discard)
	case "file":
		if c.File == "" {
			return nil, fmt.Errorf("logging: file output requires a path")
		}
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		f, err := os.OpenFile(c.File, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		l.SetOutput(f)
		return func() { _ = f.Close() }, nil
	default:
		return nil, fmt.Errorf("logging: unsupported output %q", c.Output)
	}
	return noop, nil
}
