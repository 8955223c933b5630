// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package speech 定义语音合成的请求模型、参数校验、模式选择以及上游客户端接口。

# 核心类型

  - Request        — 合成请求（文本、音色、音频格式、音效、发音词典、背景音）
  - Mode           — 执行路径：Sync / Streaming / Async
  - Provider       — 合成上游接口（同步、流式、异步提交、异步查询、取回音频）
  - VoiceProvider  — 音色克隆上游接口（上传、克隆、删除、列表）

# 模式选择

SelectMode 是纯函数，优先级固定：

 1. async_enabled 且文本长度 > async_threshold → Async
 2. stream_enabled → Streaming
 3. 否则 Sync

# 参数校验

Request.Validate 在任何限流或网络调用之前执行，越界参数直接拒绝，
不做截断或钳制。

子包：

  - ratelimit     — 滚动窗口限流器
  - retry         — 确定性指数退避
  - gate          — 每次网络调用的限流 + 重试闸门
  - async         — 长文本异步任务轮询
  - orchestrator  — 组合以上组件的合成编排器
  - minimax       — MiniMax HTTP 客户端
  - voiceclone    — 克隆音色管理
  - audiostore    — 本地音频目录与缓存
  - chatmode      — 会话级语音回复标记
*/
package speech
