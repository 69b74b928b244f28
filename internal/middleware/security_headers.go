package middleware

import (
	"fmt"
	"net/http"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// backendOriginはブラウザからのfetchを許可する接続先としてCSPのconnect-srcに加える。
// WebAssemblyの実行には'wasm-unsafe-eval'が必要。
func NewSecurityHeadersMiddleware(backendOrigin string) func(next http.Handler) http.Handler {
	csp := fmt.Sprintf(
		"default-src 'self'; script-src 'self' 'wasm-unsafe-eval'; connect-src 'self' %s; frame-ancestors 'none'; base-uri 'none'",
		backendOrigin,
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}
