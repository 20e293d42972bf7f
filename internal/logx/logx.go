package logx

import (
	"context"

	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

type contextKey int

const sessionKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithSessionCtx annotates the context logger with the session id unless the
// context already carries it.
func WithSessionCtx(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID == "" {
		return log
	}
	if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
		return log
	}
	return log.With("session", sessionID)
}

// WithInput annotates the logger with ingestion item metadata when available.
func WithInput(log pslog.Logger, mediaType, name string) pslog.Logger {
	if mediaType != "" {
		log = log.With("media_type", mediaType)
	}
	if name != "" {
		log = log.With("input", name)
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}
