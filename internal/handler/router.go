package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dishpatch/internal/metrics"
	"github.com/hitoshi/dishpatch/internal/middleware"
)

// Pinger はヘルスチェックで使用するDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Cookie            middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Guard             *middleware.RouteGuard
	HTTPMetrics       middleware.HTTPStatusRecorder
	AdminAPIKey       string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	RestaurantService RestaurantServiceInterface
	MenuService       MenuServiceInterface
	OrderService      OrderServiceInterface
	AccountService    AccountServiceInterface

	// メトリクス
	LoginMetrics LoginMetrics
	Gatherer     prometheus.Gatherer

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → HTTPMetrics → SecurityHeaders → CORS → CSRF → RouteGuard → RateLimit(General)
//
// RouteGuardは全ルートに適用され、公開パスの通過・未認証リダイレクト・
// 役割不足リダイレクトをパス単位で判定する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewHTTPMetricsMiddleware(deps.HTTPMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.Cookie))
	r.Use(deps.Guard.Middleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.LoginMetrics, deps.AuthConfig)
	restaurantHandler := NewRestaurantHandler(deps.RestaurantService)
	menuHandler := NewMenuHandler(deps.MenuService)
	orderHandler := NewOrderHandler(deps.OrderService)
	accountHandler := NewAccountHandler(deps.AccountService, deps.AuthService, deps.Cookie)

	// --- 公開ルート（ガードの公開パス判定で通過する） ---

	// ヘルスチェック
	r.Get("/health", newHealthHandler(deps.DB))

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// CSRFトークン配布
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookie))

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		// パスワード認証（ログイン専用レート制限を追加）
		loginLimited := deps.RateLimiter.LoginMiddleware()
		r.With(loginLimited).Post("/signup", authHandler.SignUp)
		r.With(loginLimited).Post("/signin", authHandler.SignIn)
		r.With(loginLimited).Post("/password-reset/request", authHandler.RequestPasswordReset)
		r.Post("/password-reset/confirm", authHandler.ResetPassword)
		r.Post("/confirm-email", authHandler.ConfirmEmail)

		// OAuthフロー
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 店舗・メニューの閲覧（未ログインでも利用可能）
	r.Route("/api/public/restaurants", func(r chi.Router) {
		r.Get("/", restaurantHandler.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", restaurantHandler.Get)
			r.Get("/logo", restaurantHandler.Logo)
			r.Get("/menu", menuHandler.ListPublic)
		})
	})

	// --- 認証が必要なルート ---
	// ガードを通過したリクエストのみ到達する。一般レート制限を適用。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 店舗管理
		r.Route("/api/restaurants", func(r chi.Router) {
			r.Post("/", restaurantHandler.Create)
			r.Get("/mine", restaurantHandler.Mine)

			// 店舗コンソール（ガードでrestaurant_staff以上を要求）
			r.Route("/manage/{id}", func(r chi.Router) {
				r.Patch("/", restaurantHandler.Update)
				r.Post("/logo/refresh", restaurantHandler.RefreshLogo)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", restaurantHandler.ListMembers)
					r.Post("/", restaurantHandler.AddMember)
					r.Patch("/{userID}", restaurantHandler.UpdateMemberRole)
					r.Delete("/{userID}", restaurantHandler.RemoveMember)
				})

				r.Route("/menu", func(r chi.Router) {
					r.Get("/", menuHandler.ListAll)
					r.Post("/", menuHandler.Create)
					r.Put("/{itemID}", menuHandler.Update)
					r.Put("/{itemID}/availability", menuHandler.SetAvailability)
					r.Delete("/{itemID}", menuHandler.Delete)
				})

				r.Get("/orders", orderHandler.ListForRestaurant)
			})
		})

		// 注文
		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Place)
			r.Get("/", orderHandler.ListMine)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orderHandler.Get)
				r.Put("/status", orderHandler.UpdateStatus)
			})
		})

		// アカウント
		r.Get("/api/profile", accountHandler.GetProfile)
		r.Put("/api/profile", accountHandler.UpdateProfile)
		r.Delete("/api/users/me", accountHandler.Withdraw)

		// 運営管理API（ガードのplatform_admin要求に加えてAPIキーを検証する）
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminKeyMiddleware(deps.AdminAPIKey))
			r.Put("/restaurants/{id}/status", restaurantHandler.UpdateStatus)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "unhealthy",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
