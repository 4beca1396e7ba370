package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to stdout.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`             // ISO 8601 format timestamp
	Level     string       `json:"level"`                 // DEBUG | INFO | WARN | ERROR
	Service   string       `json:"service"`               // service name (e.g., realtime-service)
	Action    string       `json:"action"`                // event name (e.g., session_connected)
	Message   string       `json:"message"`               // human-readable description
	Hostname  string       `json:"hostname"`              // service hostname
	RequestID string       `json:"request_id,omitempty"`  // correlation ID for tracing
	Identity  string       `json:"identity_id,omitempty"` // connected identity (when applicable)
	Details   any          `json:"details,omitempty"`     // optional: extra fields (map or struct)
	Error     *ErrorObject `json:"error,omitempty"`       // optional: error details
}

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	mu       sync.Mutex
}

// New creates a structured logger for the given service.
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	return &Logger{service: service, hostname: hn}
}

// emit marshals and prints a single JSON line to stdout.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Println(string(b))
		return
	}

	// retry once without Details (common source of marshal errors)
	e.Details = nil
	if b, err := json.Marshal(e); err == nil {
		fmt.Println(string(b))
		return
	}

	// final structured fallback to keep logs JSON-shaped
	fallback := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     "ERROR",
		"service":   l.service,
		"action":    "logger_marshal_failed",
		"message":   "failed to encode log entry",
		"hostname":  l.hostname,
	}

	if fb, err := json.Marshal(fallback); err == nil {
		fmt.Println(string(fb))
	} else {
		fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
	}
}

func (l *Logger) log(ctx context.Context, level, action, msg string, err error, details any) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Service:   l.service,
		Action:    safeAction(action),
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: requestID(ctx),
		Identity:  identityID(ctx),
		Details:   details,
	}
	if err != nil {
		entry.Error = &ErrorObject{
			Msg:   strings.TrimSpace(err.Error()),
			Stack: string(debug.Stack()),
		}
	}
	l.emit(entry)
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.log(ctx, "DEBUG", action, msg, nil, details)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.log(ctx, "INFO", action, msg, nil, details)
}

// Warn writes a WARN line with optional details. Used for per-event problems
// that must not disturb other sessions (e.g., malformed payloads).
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.log(ctx, "WARN", action, msg, nil, details)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	l.log(ctx, "ERROR", action, msg, err, details)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "ridelink_request_id"
	ctxKeyIdentity  ctxKey = "ridelink_identity_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithIdentity returns a new context carrying the connected identity_id.
func (l *Logger) WithIdentity(ctx context.Context, identity string) context.Context {
	if strings.TrimSpace(identity) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func identityID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyIdentity).(string); ok {
		return s
	}
	return ""
}

// ----- Small utilities -----

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
