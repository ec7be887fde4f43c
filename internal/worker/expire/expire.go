// Package expire は放置注文の自動キャンセル処理を提供する。
// 店舗が一定時間受理しなかったplaced状態の注文を定期的にキャンセルする。
package expire

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// defaultBatchSize は1サイクルで処理する注文の最大件数。
const defaultBatchSize = 100

// ExpiryMetrics は自動キャンセルの計測インターフェース。
type ExpiryMetrics interface {
	RecordOrderExpired()
}

// Scheduler は放置注文の自動キャンセルのスケジューリングと並列制御を行う。
// ティッカーで対象注文を取得し、semaphoreパターンで最大並列数を
// 制御しながらキャンセルを実行する。
// 対象の取得はFOR UPDATE SKIP LOCKEDで行うため、複数ワーカーを
// 並走させても同じ注文を二重に処理しない。
type Scheduler struct {
	orderRepo      repository.OrderRepository
	logger         *slog.Logger
	metrics        ExpiryMetrics
	expireAfter    time.Duration
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	orderRepo repository.OrderRepository,
	logger *slog.Logger,
	metrics ExpiryMetrics,
	expireAfter time.Duration,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		orderRepo:      orderRepo,
		logger:         logger,
		metrics:        metrics,
		expireAfter:    expireAfter,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("注文期限切れスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("expire_after", s.expireAfter),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("期限切れサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("注文期限切れスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("期限切れサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限超過したplaced注文を1回取得し、並列でキャンセルする。
// 状態更新はCAS操作のため、店舗が直前に受理した注文はキャンセルされない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	before := time.Now().Add(-s.expireAfter)
	orders, err := s.orderRepo.ListStalePlaced(ctx, before, defaultBatchSize)
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		return nil
	}

	s.logger.Info("期限切れサイクルを開始します",
		slog.Int("order_count", len(orders)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, o := range orders {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(ord *model.Order) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.expireOrder(ctx, ord)
		}(o)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("期限切れサイクルが完了しました",
		slog.Int("order_count", len(orders)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// expireOrder は1件の注文をplaced→cancelledにCASで遷移させる。
func (s *Scheduler) expireOrder(ctx context.Context, o *model.Order) {
	updated, err := s.orderRepo.UpdateStatusIf(ctx, o.ID, model.OrderStatusPlaced, model.OrderStatusCancelled)
	if err != nil {
		s.logger.Error("注文の自動キャンセルに失敗しました",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !updated {
		// 取得とCASの間に店舗が状態を変更した。そのまま尊重する。
		s.logger.Info("注文は既に状態が変更されていました",
			slog.String("order_id", o.ID),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordOrderExpired()
	}
	s.logger.Info("放置注文を自動キャンセルしました",
		slog.String("order_id", o.ID),
		slog.Time("placed_at", o.PlacedAt),
	)
}
