package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// aeadSuites TLS 1.2 下允许的密码套件，TLS 1.3 套件由标准库固定
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// DefaultTLSConfig 客户端 TLS 配置：TLS 1.2+，仅 AEAD 套件。
// Redis 连接与 OTLP 导出共用。
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: append([]uint16(nil), aeadSuites...),
	}
}

// ServerTLSConfig HTTPS 服务端配置，额外限定曲线并声明 h2
func ServerTLSConfig() *tls.Config {
	cfg := DefaultTLSConfig()
	cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	cfg.NextProtos = []string{"h2", "http/1.1"}
	return cfg
}

// TransportOptions 上游连接池参数，零值字段使用默认值
type TransportOptions struct {
	// MaxIdleConnsPerHost 同一上游的空闲连接数
	MaxIdleConnsPerHost int
	// ResponseHeaderTimeout 等待响应头的上限；流式合成的首包也受此约束
	ResponseHeaderTimeout time.Duration
}

// SecureTransport 返回启用 TLS 加固的 http.Transport
func SecureTransport(opts ...TransportOptions) *http.Transport {
	tr := &http.Transport{
		TLSClientConfig: DefaultTLSConfig(),
		Proxy:           http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	for _, o := range opts {
		if o.MaxIdleConnsPerHost > 0 {
			tr.MaxIdleConnsPerHost = o.MaxIdleConnsPerHost
		}
		if o.ResponseHeaderTimeout > 0 {
			tr.ResponseHeaderTimeout = o.ResponseHeaderTimeout
		}
	}
	return tr
}

// SecureHTTPClient 带整体超时的加固客户端，供健康检查等短请求使用
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: SecureTransport(),
	}
}
