// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/newsman/internal/model"
)

// DefaultIdentityHeader は上流の認証プロキシが付与するユーザーIDヘッダーの既定名。
const DefaultIdentityHeader = "X-User-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// NewIdentityMiddleware は信頼済みの上流が付与したヘッダーからユーザーIDを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが無い、またはUUIDとして解釈できない場合は401を返す。
func NewIdentityMiddleware(header string) func(next http.Handler) http.Handler {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := parseUserID(r.Header.Get(header))
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// parseUserID はヘッダー値を正規化したUUID文字列に変換する。
func parseUserID(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return "", false
	}
	return id.String(), true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 識別ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
