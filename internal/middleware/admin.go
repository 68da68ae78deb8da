package middleware

import (
	"net/http"

	"github.com/hitoshi/newsman/internal/model"
)

// NewAdminMiddleware は管理者として登録されたユーザーIDのみを通すミドルウェアを返す。
// 識別ミドルウェアの後に置く。管理者が1人も登録されていない場合は全リクエストを403で拒否する。
func NewAdminMiddleware(adminUserIDs []string) func(next http.Handler) http.Handler {
	admins := make(map[string]struct{}, len(adminUserIDs))
	for _, raw := range adminUserIDs {
		if id, ok := parseUserID(raw); ok {
			admins[id] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if _, ok := admins[userID]; !ok {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
