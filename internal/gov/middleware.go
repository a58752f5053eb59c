package gov

import (
	"crypto/subtle"
	"net/http"
	"strings"

	loggerpkg "Intent-Chain/pkg/logger"
)

// Middleware 返回一个 HTTP 中间件，保护治理相关的接口。调用方必须携带
// Bearer 令牌；令牌为空时所有治理接口均被拒绝。
func Middleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			deny(w, r, http.StatusForbidden, "governance surface disabled")
			return
		}
		// 认证请求。
		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			deny(w, r, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, r *http.Request, status int, reason string) {
	http.Error(w, http.StatusText(status), status)
	// 记录审计日志。
	loggerpkg.Audit().Warn("governance_access_denied",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"reason", reason,
	)
}
