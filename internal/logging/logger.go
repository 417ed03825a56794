// Package logging configures the process-wide logrus logger: a compact
// timestamped console formatter and an optional rotating file sink.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var setupOnce sync.Once

// Formatter renders a single log entry as:
//
//	[2026-07-30 10:00:00] [info ] | a1b2c3d4 | message key=value
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}

	var fields strings.Builder
	for k, v := range entry.Data {
		if k == "request_id" {
			continue
		}
		fields.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}

	line := fmt.Sprintf("[%s] [%-5s] | %s | %s%s\n", timestamp, level, reqID, strings.TrimRight(entry.Message, "\r\n"), fields.String())
	return []byte(line), nil
}

// Options configures Setup.
type Options struct {
	Level   string // debug, info, warn, error
	FilePath string // empty disables file rotation
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs the process-wide formatter and level, and optionally tees
// output to a rotating file via lumberjack. Safe to call multiple times;
// only the first call takes effect.
func Setup(opts Options) {
	setupOnce.Do(func() {
		log.SetFormatter(&Formatter{})

		level, err := log.ParseLevel(opts.Level)
		if err != nil {
			level = log.InfoLevel
		}
		log.SetLevel(level)

		if opts.FilePath == "" {
			return
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.MaxSizeMB, 50),
			MaxBackups: nonZero(opts.MaxBackups, 7),
			MaxAge:     nonZero(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(log.StandardLogger().Out, rotator))
	})
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
