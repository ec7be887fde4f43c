// Package cleanup は認証データの自動削除ジョブを提供する。
// 期限切れのセッション・リフレッシュトークン・アクショントークンを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れ認証データの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// 使用済みトークンは盗難検知の照合に使うため、期限切れまで削除しない。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
	}
}

// cleanupQueries は削除対象テーブルとクエリの対応。
var cleanupQueries = []struct {
	name  string
	query string
}{
	{"sessions", `DELETE FROM sessions WHERE expires_at < now()`},
	{"refresh_tokens", `DELETE FROM refresh_tokens WHERE expires_at < now()`},
	{"action_tokens", `DELETE FROM action_tokens WHERE expires_at < now()`},
}

// Run は期限切れの認証データを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var total int64

	for _, q := range cleanupQueries {
		result, err := j.db.ExecContext(ctx, q.query)
		if err != nil {
			j.logger.Error("認証データクリーンアップジョブの実行に失敗しました",
				slog.String("table", q.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%sのクリーンアップに失敗: %w", q.name, err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			j.logger.Error("削除件数の取得に失敗しました",
				slog.String("table", q.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}
		total += deleted

		j.logger.Info("テーブルのクリーンアップが完了しました",
			slog.String("table", q.name),
			slog.Int64("deleted_count", deleted),
		)
	}

	duration := time.Since(start)
	j.logger.Info("認証データクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
