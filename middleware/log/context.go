package logger

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// Context keys for request-scoped log fields. Their values are also the field names.
const (
	TraceIDKey  contextKey = "trace_id"
	SocketIDKey contextKey = "socket_id"
)

const maxTraceIDLen = 64

// WithTraceID stores traceID in ctx. An empty or unusable id (too long, or
// containing anything but letters, digits, '-', '_' and '.') is replaced by a UUID,
// since the id usually comes straight from a request header.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if !validTraceID(traceID) {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// WithSocketID tags ctx with the gateway connection a request came from.
// An empty id leaves ctx untouched.
func WithSocketID(ctx context.Context, socketID string) context.Context {
	if socketID == "" {
		return ctx
	}
	return context.WithValue(ctx, SocketIDKey, socketID)
}

func GetSocketID(ctx context.Context) string {
	return stringValue(ctx, SocketIDKey)
}

func NewTraceID() string {
	return uuid.NewString()
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
