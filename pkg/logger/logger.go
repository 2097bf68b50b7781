package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the fields the verification services attach
type Logger struct {
	zerolog.Logger
}

// Options selects level and output format. The zero value logs JSON at info.
type Options struct {
	Level  string
	Format string // json or console
	Output io.Writer
}

// New creates the logger for a service
func New(serviceName string, opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return NewWithWriter(serviceName, out).Level(ParseLevel(opts.Level))
}

// NewWithWriter creates an info level logger that writes to w
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ParseLevel maps a level name to a zerolog level, falling back to info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// Level returns a copy of the logger filtered at level
func (l *Logger) Level(level zerolog.Level) *Logger {
	return &Logger{Logger: l.Logger.Level(level)}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithRequestID attaches the HTTP request ID
func (l *Logger) WithRequestID(requestID string) *Logger { return l.with("request_id", requestID) }

// WithJobID attaches the verification job ID
func (l *Logger) WithJobID(jobID string) *Logger { return l.with("job_id", jobID) }

// WithDocumentID attaches the uploaded document ID
func (l *Logger) WithDocumentID(documentID string) *Logger { return l.with("document_id", documentID) }

// WithStage attaches the pipeline stage name
func (l *Logger) WithStage(stage string) *Logger { return l.with("stage", stage) }

// WithComponent attaches the component name
func (l *Logger) WithComponent(component string) *Logger { return l.with("component", component) }
