package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// allowedHeadersには識別ヘッダーなどContent-Type以外に許可するヘッダーを指定する。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigin string, allowedHeaders ...string) func(next http.Handler) http.Handler {
	headers := strings.Join(append([]string{"Content-Type"}, allowedHeaders...), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
