/*
Package handlers 提供 SpeechFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现语音合成、音色克隆、聊天语音回复与健康检查端点，
以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口，
路由使用 Go 1.22 的方法与路径参数模式注册。

# 核心类型

  - SpeechHandler   — 合成（JSON 或原始音频）、SSE 流式合成、源音频列表
  - VoiceHandler    — 克隆、批量克隆、列表、删除、试听、批量试听
  - ChatHandler     — 语音回复标记、常驻语音开关、回复形式决策
  - HealthHandler   — 服务健康检查（/health, /healthz, /ready）
  - Response        — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter  — 包装 http.ResponseWriter 以捕获状态码与响应大小

# 错误映射

VALIDATION → 400，NOT_FOUND → 404，CONFLICT → 409，RATE_LIMITED → 429，
TIMEOUT_EXCEEDED → 504，上游错误（含上游鉴权失败）→ 502，其余 → 500。
*/
package handlers
