// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 speechflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 speech、api、cmd
等上层模块提供统一的错误契约。

# 错误码

  - VALIDATION          — 参数校验失败，未消耗限流令牌、未发起网络调用
  - AUTHENTICATION      — 上游凭证无效，致命错误
  - RATE_LIMITED        — 上游限流拒绝，可重试
  - TRANSIENT_NETWORK   — 网络抖动、超时或 5xx，可重试
  - PROVIDER_ERROR      — 上游业务错误（内容审核、余额不足），不重试
  - TIMEOUT_EXCEEDED    — 异步任务等待超过上限，服务端任务不会被取消
  - STREAM_INTERRUPTED  — 流式传输中途失败，已送达的音频保留

所有错误都以 *Error 形式返回，可通过 GetErrorCode / IsRetryable 在
包装链中识别。
*/
package types
