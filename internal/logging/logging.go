package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/natefinch/lumberjack"
)

const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

const (
	TypeConsole = "console"
	TypeFile    = "file"
)

// Settings selects where run diagnostics go. Console output goes to stderr so
// that formatted results on stdout stay machine-readable.
type Settings struct {
	Level      string `json:"level" yaml:"level" validate:"required,oneof=debug info warning error"`
	Type       string `json:"type" yaml:"type" validate:"required,oneof=console file"`
	FilePath   string `json:"file_path" yaml:"file_path"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`

	// Writer overrides stderr for the console logger.
	Writer io.Writer `json:"-" yaml:"-"`
}

func DefaultSettings() Settings {
	return Settings{Level: LevelInfo, Type: TypeConsole}
}

func (s *Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed for logging settings: %w", err)
	}

	if s.Type == TypeFile {
		if s.FilePath == "" {
			return fmt.Errorf("file path is required for file logger")
		}
		if s.MaxSize < 1 || s.MaxSize > 100 {
			return fmt.Errorf("max size must be between 1 and 100 MB")
		}
		if s.MaxBackups < 1 || s.MaxBackups > 10 {
			return fmt.Errorf("max backups must be between 1 and 10")
		}
		if s.MaxAge < 1 || s.MaxAge > 365 {
			return fmt.Errorf("max age must be between 1 and 365 days")
		}
	}

	return nil
}

// New builds a text logger for the console or a rotating JSON logger for a
// file. The returned closer flushes and closes the file; it is a no-op for
// the console.
func New(s Settings) (*slog.Logger, io.Closer, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(s.Level)}

	switch s.Type {
	case TypeFile:
		writer := &lumberjack.Logger{
			Filename:   s.FilePath,
			MaxSize:    s.MaxSize,
			MaxBackups: s.MaxBackups,
			MaxAge:     s.MaxAge,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(writer, opts)), writer, nil
	default:
		w := s.Writer
		if w == nil {
			w = os.Stderr
		}
		return slog.New(slog.NewTextHandler(w, opts)), nopCloser{}, nil
	}
}

func ParseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
