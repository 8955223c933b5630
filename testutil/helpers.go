// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	parts, err := testutil.CollectStreamAudio(ch)
//	ok := testutil.WaitClosed(ch, time.Second)
//
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// WaitClosed 等待通道被关闭（期间收到的值全部丢弃）
func WaitClosed[T any](ch <-chan T, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}

// =============================================================================
// 🔊 流式辅助
// =============================================================================

// CollectStreamAudio 读完分片通道，返回各分片数据与最后一个错误
func CollectStreamAudio(ch <-chan speech.StreamChunk) ([]string, error) {
	var (
		parts   []string
		lastErr error
	)
	for chunk := range ch {
		if chunk.Err != nil {
			lastErr = chunk.Err
			continue
		}
		parts = append(parts, string(chunk.Data))
	}
	return parts, lastErr
}
