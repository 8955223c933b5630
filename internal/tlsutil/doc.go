// Package tlsutil 提供集中式 TLS 配置：MiniMax 上游客户端、HTTPS 服务端、
// Redis 连接与 OTLP 导出统一使用 TLS 1.2+ 与 AEAD 密码套件。
package tlsutil
