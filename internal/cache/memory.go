package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryEntry は値と有効期限を保持する。
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache はプロセス内のTTL付きキャッシュ。
// プロセス間で共有されないため、単一プロセス構成でのみ使用する。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryCache はMemoryCacheを生成する。
// cleanupIntervalが正の場合、期限切れエントリを定期的に削除するゴルーチンを開始する。
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get はキーの値を返す。期限切れのエントリはその場で削除する。
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set はキーに値を保存する。ttlが0以下の場合は保存しない。
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete は指定キーを削除する。
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}

// DeletePrefix はprefixで始まるすべてのキーを削除する。
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping は常に成功する。
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Close はクリーンアップのゴルーチンを停止する。複数回呼んでもよい。
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

// Len は保持しているエントリ数を返す。期限切れで未削除のものも含む。
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup は期限切れエントリを削除する。
func (c *MemoryCache) cleanup() {
	now := c.now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// compile-time interface check
var _ Cache = (*MemoryCache)(nil)
