package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written under Config.Dir
const FileName = "mandalart.log"

// Config holds logger configuration
type Config struct {
	Debug bool
	// Dir enables a rotating log file; empty means stderr only
	Dir    string
	Prefix string
	// Output replaces stderr, mainly for tests
	Output io.Writer
}

// New builds a logger writing to stderr and, when Dir is set, to a rotating file
func New(cfg Config) (*log.Logger, error) {
	var writer io.Writer = os.Stderr
	if cfg.Output != nil {
		writer = cfg.Output
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, FileName),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer = io.MultiWriter(writer, fileWriter)
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "mandalart"
	}

	return log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          prefix,
	}), nil
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}
