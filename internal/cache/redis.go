package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize はDeletePrefixで1回のSCANに要求する件数。
const scanBatchSize = 500

// RedisCache はRedisを使用した共有キャッシュ。
// 複数のAPIインスタンスと取り込みワーカーで同じキャッシュを参照する。
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache は接続URL（redis://...）からRedisCacheを生成する。
// 接続は遅延して確立されるため、到達確認にはPingを使用すること。
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗しました: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// NewRedisCacheFromClient は既存のクライアントからRedisCacheを生成する。
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get はキーの値を返す。redis.NilはErrMissに変換する。
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}
	return b, nil
}

// Set はキーに値をttlの有効期限付きで保存する。ttlが0以下の場合は保存しない。
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

// DeletePrefix はSCAN MATCHでprefixに一致するキーを列挙し、バッチごとにUNLINKする。
// KEYSはサーバーをブロックするため使用しない。
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(prefix) + "*"
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("キャッシュキーの走査に失敗しました: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("キャッシュの一括削除に失敗しました: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping はRedisに到達できるかを確認する。
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redisへの接続確認に失敗しました: %w", err)
	}
	return nil
}

// Close はクライアントの接続を閉じる。
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// escapeGlob はRedisのglobパターンで特別な意味を持つ文字をエスケープする。
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// compile-time interface check
var _ Cache = (*RedisCache)(nil)
