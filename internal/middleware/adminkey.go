package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// adminKeyHeaderName は管理APIキーを読み取るヘッダー名。
const adminKeyHeaderName = "X-Admin-Key"

// NewAdminKeyMiddleware はサーバー間通信用の管理APIキーを検証するミドルウェアを返す。
// 店舗スコープの認可を経由しない管理エンドポイント専用で、キーはブラウザに渡してはならない。
// キーが未設定の場合、管理エンドポイントは全て拒否される（フェイルクローズ）。
func NewAdminKeyMiddleware(adminAPIKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminAPIKey == "" {
				slog.Warn("admin endpoint accessed but ADMIN_API_KEY is not configured",
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			provided := r.Header.Get(adminKeyHeaderName)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminAPIKey)) != 1 {
				slog.Warn("admin key validation failed",
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
