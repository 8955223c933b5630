package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithChatID(ctx, "chat-9")
	ctx = WithPrincipal(ctx, "ops")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	chat, _ := ChatID(ctx)
	assert.Equal(t, "chat-9", chat)

	p, _ := Principal(ctx)
	assert.Equal(t, "ops", p)

	_, ok = ChatID(WithChatID(context.Background(), ""))
	assert.False(t, ok)
}
