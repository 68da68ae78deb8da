// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, article, user, system
	Action   string // ユーザー向け対処方法

	cause error // ログ用の原因エラー。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeInvalidCategory      = "INVALID_CATEGORY"
	ErrCodeArticleNotFound      = "ARTICLE_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeSavedArticleNotFound = "SAVED_ARTICLE_NOT_FOUND"
	ErrCodeStoreUnavailable     = "STORE_UNAVAILABLE"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeForbidden            = "FORBIDDEN"
)

// NewInvalidArgumentError は不正な引数エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("不正なパラメータです: %s", reason),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// NewInvalidCategoryError は未知のカテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   fmt.Sprintf("カテゴリには %v のいずれかを指定してください。", Categories),
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "article",
		Action:   "記事IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: "user",
		Action:   "ログインし直してください。",
	}
}

// NewSavedArticleNotFoundError は保存済み記事が見つからない場合のエラーを生成する。
func NewSavedArticleNotFoundError(savedID string) *APIError {
	return &APIError{
		Code:     ErrCodeSavedArticleNotFound,
		Message:  fmt.Sprintf("保存済み記事が見つかりません: %s", savedID),
		Category: "article",
		Action:   "保存済み記事一覧を確認してください。",
	}
}

// NewStoreUnavailableError はストアへの問い合わせ失敗エラーを生成する。
// ストアは正であるため、キャッシュと違い縮退させずに呼び出し元へ返す。
func NewStoreUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}

// NewUnauthenticatedError は利用者を識別できないリクエストのエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "利用者を識別できません。",
		Category: "user",
		Action:   "有効なユーザーIDを付与して再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewForbiddenError は管理者権限を持たない利用者が管理操作を要求した場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "user",
		Action:   "管理者に操作を依頼してください。",
	}
}

// HasCode はerrがAPIErrorであり、指定コードを持つかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
