// Package logger wraps logrus with component-scoped entries.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Entry is a component-scoped logger.
type Entry = logrus.Entry

// Fields is a set of structured log fields.
type Fields = logrus.Fields

var (
	mu     sync.Mutex
	global *logrus.Logger
)

// Config selects level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// Init replaces the process logger.
func Init(cfg Config) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
		})
	}
	l.SetOutput(os.Stdout)

	mu.Lock()
	global = l
	mu.Unlock()
}

// InitFromEnv initializes the logger from LOG_LEVEL and LOG_FORMAT.
func InitFromEnv() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	Init(Config{Level: level, Format: format})
}

// Get returns the process logger, initializing it from the environment on first use.
func Get() *logrus.Logger {
	mu.Lock()
	l := global
	mu.Unlock()
	if l != nil {
		return l
	}
	InitFromEnv()
	mu.Lock()
	defer mu.Unlock()
	return global
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(component string) *Entry {
	return Get().WithField("component", component)
}
