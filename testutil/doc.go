/*
Package testutil 提供 SpeechFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，
    自动注册 Cleanup 防止泄漏
  - 通道辅助: WaitClosed 等待流式通道关闭
  - 流式辅助: CollectStreamAudio 读完合成分片并返回最后的错误

# 子包

  - testutil/mocks: Mock 实现，包括 MockProvider（语音合成上游）
    与 MockVoiceProvider（音色管理上游），均支持 Builder 模式、
    调用计数与错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithStreamChunks([]byte("a"), []byte("b"))
	ch, err := orch.Stream(ctx, req)
	parts, streamErr := testutil.CollectStreamAudio(ch)
*/
package testutil
