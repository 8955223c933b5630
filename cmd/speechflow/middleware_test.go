package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/api/handlers"
	"github.com/BaSui01/speechflow/internal/ctxkeys"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// principalEcho 把 context 中的调用方标识写回响应
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := ctxkeys.Principal(r.Context())
		_, _ = w.Write([]byte(p))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get(handlers.RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(handlers.RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})

	t.Run("client provided", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(handlers.RequestIDHeader, "trace-abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "trace-abc", w.Header().Get(handlers.RequestIDHeader))
		assert.Equal(t, "trace-abc", seen)
	})
}

func TestRecovery(t *testing.T) {
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recovery(zap.NewNop()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.Contains(t, w.Body.String(), `"request_id"`)
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"k1", "k2"}, skipAuthPaths, true, zap.NewNop())(principalEcho())

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"header key", "/api/v1/voices", "k1", http.StatusOK},
		{"query key", "/api/v1/voices?api_key=k2", "", http.StatusOK},
		{"wrong key", "/api/v1/voices", "nope", http.StatusUnauthorized},
		{"missing key", "/api/v1/voices", "", http.StatusUnauthorized},
		{"skip path", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"AUTHENTICATION"`)
			}
		})
	}

	t.Run("principal hides key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/voices", nil)
		r.Header.Set("X-API-Key", "k1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Regexp(t, `^key:[0-9a-f]{8}$`, w.Body.String())
		assert.NotContains(t, w.Body.String(), "k1")
	})
}

func TestAPIKeyAuth_QueryDisabled(t *testing.T) {
	handler := APIKeyAuth([]string{"k1"}, nil, false, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?api_key=k1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "s3cret"
	handler := JWTAuth(secret, skipAuthPaths, zap.NewNop())(principalEcho())
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	do := func(auth, path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("valid", func(t *testing.T) {
		tok := signToken(t, secret, jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future})
		w := do("Bearer "+tok, "/api/v1/voices")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "jwt:alice", w.Body.String())
	})

	t.Run("expired", func(t *testing.T) {
		tok := signToken(t, secret, jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		})
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+tok, "/api/v1/voices").Code)
	})

	t.Run("no expiry", func(t *testing.T) {
		tok := signToken(t, secret, jwt.RegisteredClaims{Subject: "alice"})
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+tok, "/api/v1/voices").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signToken(t, "other", jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future})
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+tok, "/api/v1/voices").Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("Token abc", "/api/v1/voices").Code)
	})

	t.Run("skip path", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("", "/ready").Code)
	})
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limited := RateLimiter(ctx, 0.001, 1, zap.NewNop())(okHandler())

	send := func(remote, principal string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if principal != "" {
			r = r.WithContext(ctxkeys.WithPrincipal(r.Context(), principal))
		}
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:2000", ""))
	// 不同 IP 独立计数
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000", ""))
	// 已认证请求按 principal 计数，与 IP 无关
	assert.Equal(t, http.StatusOK, send("10.0.0.1:3000", "key:abc"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.9:3000", "key:abc"))
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Synthesis-Mode")
	})

	t.Run("allowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown origin preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/health":                                "/health",
		"/api/v1/speech/synthesize":              "/api/v1/speech/synthesize",
		"/api/v1/voices":                         "/api/v1/voices",
		"/api/v1/voices/remote":                  "/api/v1/voices/remote",
		"/api/v1/voices/audio":                   "/api/v1/voices/audio",
		"/api/v1/voices/clone/batch":             "/api/v1/voices/clone/batch",
		"/api/v1/voices/alice_cloned":            "/api/v1/voices/:id",
		"/api/v1/voices/alice_cloned/test":       "/api/v1/voices/:id/test",
		"/api/v1/chats/chat-42/reply":            "/api/v1/chats/:id/reply",
		"/api/v1/chats/7/voice-always":           "/api/v1/chats/:id/voice-always",
		"/api/v1/unknown/0123456789abcdef/thing": "/api/v1/unknown/:id/thing",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}
