package middleware

import "net/http"

// apiSecurityHeaders はすべてのレスポンスに付けるヘッダー。
// JSONしか返さないため、CSPはあらゆるリソースの読み込みと埋め込みを禁止する。
var apiSecurityHeaders = [...]struct{ key, value string }{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cross-Origin-Resource-Policy", "same-site"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	// 応答は呼び出し元ごとに異なるため共有キャッシュに残さない
	{"Cache-Control", "no-store"},
}

// NewSecurityHeadersMiddleware はAPIレスポンス用のセキュリティヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, sh := range apiSecurityHeaders {
				h.Set(sh.key, sh.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
