package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/assessdex/internal/version"
)

// ServiceName is attached to every log entry.
const ServiceName = "assessdex"

// Output formats accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options override the environment defaults. Empty fields keep them.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// NewLogger builds the process logger. prod defaults to JSON at info level,
// local, dev, docker and test to colored console output at debug level.
// Entries go to stderr so CLI output on stdout stays machine readable.
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker", "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	switch opts.Format {
	case "":
	case FormatJSON:
		cfg.Encoding = FormatJSON
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case FormatConsole:
		cfg.Encoding = FormatConsole
	default:
		return nil, fmt.Errorf("log format must be %q or %q, got %q", FormatJSON, FormatConsole, opts.Format)
	}

	cfg.InitialFields = map[string]any{
		"service": ServiceName,
		"version": version.Version,
	}
	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
