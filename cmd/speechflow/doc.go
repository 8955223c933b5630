// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 SpeechFlow 服务端程序入口。

# 概述

cmd/speechflow 是 SpeechFlow 的可执行入口，提供 HTTP API 服务、
命令行合成、数据库迁移、健康检查和版本查询等子命令。程序支持 YAML
配置文件与 .env 加载、结构化日志（zap）、Prometheus 指标以及配置热重载。

# 核心类型

  - App        — 组件装配：MiniMax 客户端、限流重试闸门、编排器、克隆、会话
  - Server     — 管理 HTTP、Metrics 双端口、热重载及优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、say、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、
    OTelTracing、CORS、APIKeyAuth / JWTAuth、RateLimiter（按调用方）
  - 配置热重载：每分钟请求上限与日志级别无需重启即可调整
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
