package shared

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}
type teamIDKey struct{}
type telegramIDKey struct{}
type chatTypeKey struct{}

// WithTraceID attaches a trace_id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID extracts trace_id from context. Returns "-" if absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

// NewTraceID generates a new trace_id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTeamID attaches a team_id to the context.
func WithTeamID(ctx context.Context, teamID string) context.Context {
	return context.WithValue(ctx, teamIDKey{}, teamID)
}

// TeamID extracts team_id from context. Returns "" if absent.
func TeamID(ctx context.Context) string {
	if v, ok := ctx.Value(teamIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTelegramID attaches the sender's telegram_id to the context.
func WithTelegramID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, telegramIDKey{}, id)
}

// TelegramID extracts telegram_id from context. Returns 0 if absent.
func TelegramID(ctx context.Context) int64 {
	if v, ok := ctx.Value(telegramIDKey{}).(int64); ok {
		return v
	}
	return 0
}

// WithChatType attaches the resolved chat type to the context.
func WithChatType(ctx context.Context, chatType string) context.Context {
	return context.WithValue(ctx, chatTypeKey{}, chatType)
}

// ChatType extracts the resolved chat type from context. Returns "" if absent.
func ChatType(ctx context.Context) string {
	if v, ok := ctx.Value(chatTypeKey{}).(string); ok {
		return v
	}
	return ""
}
