package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SourceIngester はソース1件の取り込みを実行するインターフェース。
type SourceIngester interface {
	Ingest(ctx context.Context, src Source) (Result, error)
}

// Scheduler は取り込みの定期実行と並列制御を行う。
// ティッカーごとに全ソースを取り込み、semaphoreパターンで同時実行数を制限する。
type Scheduler struct {
	sources        []Source
	ingester       SourceIngester
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。maxConcurrencyが0以下の場合は4を使用する。
func NewScheduler(sources []Source, ingester SourceIngester, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		sources:        sources,
		ingester:       ingester,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後に1回、その後interval間隔で取り込みを実行する。
// コンテキストがキャンセルされるまで戻らない。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("sources", len(s.sources)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全ソースを1回ずつ取り込み、変更された記事の合計数を返す。
// ソース単位の失敗はログに残して他のソースの取り込みを継続する。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if len(s.sources) == 0 {
		s.logger.Info("取り込み対象のソースはありません")
		return 0
	}

	start := time.Now()
	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)

	for _, src := range s.sources {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return changed
		}
		wg.Add(1)

		go func(src Source) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.ingester.Ingest(ctx, src)
			if err != nil {
				s.logger.Error("取り込みに失敗しました",
					slog.String("source", src.Name()),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			changed += len(res.ChangedIDs)
			mu.Unlock()
		}(src)
	}

	wg.Wait()

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("sources", len(s.sources)),
		slog.Int("changed", changed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return changed
}
