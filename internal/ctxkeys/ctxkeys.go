package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	chatIDKey    contextKey = "chat_id"
	principalKey contextKey = "principal"
)

// WithRequestID 设置请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取请求 ID
func RequestID(ctx context.Context) (string, bool) {
	return lookup(ctx, requestIDKey)
}

// WithChatID 设置会话 ID
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// ChatID 获取会话 ID
func ChatID(ctx context.Context) (string, bool) {
	return lookup(ctx, chatIDKey)
}

// WithPrincipal 设置认证后的调用方标识（API Key 名或 JWT subject）
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Principal 获取调用方标识
func Principal(ctx context.Context) (string, bool) {
	return lookup(ctx, principalKey)
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
