// Package cache はAPIインスタンス間で共有する読み取りキャッシュを提供する。
//
// キャッシュは最適化であり正ではない。呼び出し側はすべてのエラーをミスとして扱い、
// データストアへフォールバックすること。
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss はキーが存在しない、または期限切れであることを示す。
var ErrMiss = errors.New("cache: miss")

// Cache はTTL付きのバイト列キャッシュのインターフェース。
type Cache interface {
	// Get はキーの値を返す。存在しない場合はErrMissを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set はキーに値をttlの有効期限付きで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete は指定キーを削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix はprefixで始まるすべてのキーを削除し、削除件数を返す。
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Ping はキャッシュに到達できるかを確認する。
	Ping(ctx context.Context) error

	// Close は接続やバックグラウンド処理を解放する。
	Close() error
}

// バックエンド種別
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)
