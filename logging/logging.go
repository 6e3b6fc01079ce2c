// Package logging configures the structured logger every command shares:
// level and format come from configuration, and the output is split so
// error-level records go to stderr while everything else goes to stdout,
// which keeps container log collectors able to treat the two separately.
package logging

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls how New builds a logger.
type Config struct {
	Level      string // debug, info, warn, error, fatal
	Format     string // "json" or "text"
	Service    string
	TimeFormat string
}

// DefaultConfig returns text-formatted, info-level defaults.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", TimeFormat: time.RFC3339}
}

// New builds a logrus.Logger from cfg, splitting stdout/stderr by level.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	Configure(logger, cfg)
	return logger
}

// Configure applies cfg to an existing logger in place; used to set up
// logrus's package-level standard logger from command-line configuration.
func Configure(logger *logrus.Logger, cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}

	logger.SetOutput(&outputSplitter{})
	if cfg.Service != "" {
		logger.AddHook(serviceHook(cfg.Service))
	}
}

// serviceHook stamps every log entry with the service name.
type serviceHook string

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = string(h)
	return nil
}

// outputSplitter routes error-level records to stderr and everything else
// to stdout, based on the formatted record text.
type outputSplitter struct{}

func (outputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}
