// Package observability provides the process's structured logging setup
// (a slog handler with runtime-adjustable level and credential
// redaction) and the SIGUSR1 per-stage activity/host-stats dump.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"

	"github.com/m-mizutani/masq"
)

// urlSensitiveParamPattern matches sensitive query parameters embedded in
// URLs logged as part of source/destination addresses (ICY stream URLs,
// presigned S3 URLs, Icecast mountpoints with basic-auth credentials).
var urlSensitiveParamPattern = regexp.MustCompile(`(?i)(password|secret|token|apikey|api_key|credential)=([^&\s"']+)`)

// GlobalLogLevel is shared so SetLogLevel can change the level at
// runtime without rebuilding the handler.
var GlobalLogLevel = &slog.LevelVar{}

// Config controls how NewLogger builds a handler.
type Config struct {
	Level      string // trace|debug|info|warn|error
	Format     string // json|text
	AddSource  bool
	TimeFormat string
}

// NewLogger builds a logger writing to stdout.
func NewLogger(cfg Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

func sensitiveFieldRedactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("password"), masq.WithFieldName("Password"),
		masq.WithFieldName("secret"), masq.WithFieldName("Secret"),
		masq.WithFieldName("token"), masq.WithFieldName("Token"),
		masq.WithFieldName("apikey"), masq.WithFieldName("ApiKey"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("credential"), masq.WithFieldName("Credential"),
	)
}

func redactURLParams(s string) string {
	return urlSensitiveParamPattern.ReplaceAllString(s, "$1=[REDACTED]")
}

// NewLoggerWithWriter builds a logger writing to w, with field-name and
// URL-query-parameter redaction applied to every attribute.
func NewLoggerWithWriter(cfg Config, w io.Writer) *slog.Logger {
	GlobalLogLevel.Set(parseLevel(cfg.Level))
	redactor := sensitiveFieldRedactor()

	opts := &slog.HandlerOptions{
		Level:     GlobalLogLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = redactor(groups, a)
			if a.Value.Kind() == slog.KindString {
				if red := redactURLParams(a.Value.String()); red != a.Value.String() {
					a = slog.String(a.Key, red)
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel changes the global log level at runtime. No signal handler
// calls it; SIGUSR1 only triggers the counter dump.
func SetLogLevel(level string) { GlobalLogLevel.Set(parseLevel(level)) }

// Component returns logger with a "component" attribute, matching the
// attribute name every stage/source/destination logs under.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("component", name))
}

// WithID adds an "id" attribute identifying a stage/source/destination
// instance.
func WithID(logger *slog.Logger, id string) *slog.Logger {
	return logger.With(slog.String("id", id))
}
