package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/dishpatch/internal/auth"
	"github.com/hitoshi/dishpatch/internal/model"
)

// ガード判定の状態。リクエストは毎回この4状態のいずれかに分類される。
const (
	// GuardStatePublic は公開パスへのアクセス。認証状態に関わらず通過する。
	GuardStatePublic = "public_path"
	// GuardStateUnauthenticated は有効なセッションがない状態。
	GuardStateUnauthenticated = "unauthenticated"
	// GuardStateUnauthorized は認証済みだが役割が要求を満たさない状態。
	GuardStateUnauthorized = "authenticated_unauthorized"
	// GuardStateAuthorized は認証済みかつ役割が要求を満たす状態。
	GuardStateAuthorized = "authenticated_authorized"
)

// redirectedFromParam はログインページへのリダイレクト時に元のパスを伝えるクエリパラメータ。
// ログイン成功後の復帰先として使用される。
const redirectedFromParam = "redirectedFrom"

// SessionAuthenticator はルートガードが必要とする認証操作のインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionAuthenticator interface {
	// ResolveSession はセッションIDから有効なセッションを取得する。
	// 存在しない・期限切れの場合は(nil, nil)を返す。
	ResolveSession(ctx context.Context, sessionID string) (*model.Session, error)
	// Refresh はリフレッシュトークンから新しいセッションの組を発行する。
	Refresh(ctx context.Context, refreshToken string) (*auth.SessionBundle, error)
	// GetProfile はユーザーのプロフィール（役割を含む）を取得する。
	// 存在しない場合は(nil, nil)を返す。
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// GuardMetrics はガード判定の計測インターフェース。
type GuardMetrics interface {
	RecordGuardDecision(state string)
	RecordSessionRotation()
}

// GuardRule は保護対象パスと必要役割の対応を表す。
// パスのプレフィックスマッチで判定し、最長一致のルールが適用される。
// 部分文字列によるパス判定は偽陽性を生むため行わない。
type GuardRule struct {
	Prefix  string
	MinRole model.Role
}

// GuardConfig はルートガードの設定。
type GuardConfig struct {
	Cookie CookieConfig

	// PublicPaths は完全一致で公開扱いとなるパス。
	PublicPaths []string
	// PublicPrefixes はプレフィックス一致で公開扱いとなるパス。
	PublicPrefixes []string
	// Rules は保護対象パスごとの必要役割。ルールに一致しない保護パスには
	// DefaultMinRoleが適用される。
	Rules []GuardRule
	// DefaultMinRole はルール未定義の保護パスに要求する最小役割。
	DefaultMinRole model.Role

	LoginPath        string
	UnauthorizedPath string
	HomePath         string
}

// DefaultGuardConfig は標準のガード設定を返す。
func DefaultGuardConfig(cookie CookieConfig) GuardConfig {
	return GuardConfig{
		Cookie: cookie,
		PublicPaths: []string{
			"/", "/login", "/register", "/reset-password", "/unauthorized",
			"/api/csrf-token",
		},
		PublicPrefixes: []string{
			"/auth/", "/health", "/metrics", "/api/public/",
		},
		Rules: []GuardRule{
			{Prefix: "/admin", MinRole: model.RolePlatformAdmin},
			{Prefix: "/api/admin", MinRole: model.RolePlatformAdmin},
			{Prefix: "/restaurant-console", MinRole: model.RoleRestaurantStaff},
			{Prefix: "/api/restaurants/manage", MinRole: model.RoleRestaurantStaff},
			{Prefix: "/courier", MinRole: model.RoleCourier},
			{Prefix: "/api/courier", MinRole: model.RoleCourier},
		},
		DefaultMinRole:   model.RoleCustomer,
		LoginPath:        "/login",
		UnauthorizedPath: "/unauthorized",
		HomePath:         "/",
	}
}

// Principal は認証・認可済みのリクエスト主体を表す。
type Principal struct {
	UserID string
	Role   model.Role
}

// RouteGuard はパス単位の認証・認可を行うミドルウェア。
//
// リクエストごとに以下の状態機械で判定する:
//  1. 公開パス         → そのまま通過
//  2. 未認証           → 302 /login?redirectedFrom=<元パス>
//  3. 認証済み・権限不足 → 302 /unauthorized
//  4. 認証済み・権限充足 → Principalをコンテキストに注入して通過
//
// セッション期限切れでも有効なリフレッシュトークンがあれば、
// その場でセッションをローテーションしてリクエストを継続する。
// プロフィール取得などの基盤障害時はフェイルクローズでホームに退避する。
type RouteGuard struct {
	authn   SessionAuthenticator
	config  GuardConfig
	metrics GuardMetrics
}

// NewRouteGuard はRouteGuardを生成する。metricsはnilでもよい。
func NewRouteGuard(authn SessionAuthenticator, config GuardConfig, metrics GuardMetrics) *RouteGuard {
	return &RouteGuard{
		authn:   authn,
		config:  config,
		metrics: metrics,
	}
}

// Middleware はガード処理のhttpミドルウェアを返す。
func (g *RouteGuard) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			// 1. 公開パス判定
			if g.isPublic(path) {
				g.record(GuardStatePublic)
				next.ServeHTTP(w, r)
				return
			}

			// 2. セッション解決。Cookieの値は必ずストアへの照会で検証する。
			session, rotated, err := g.resolveOrRotate(w, r)
			if err != nil {
				// 基盤障害。判断できないときはホームに退避する。
				slog.Error("route guard failed to resolve session",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				g.redirectHome(w, r)
				return
			}

			if session == nil {
				g.record(GuardStateUnauthenticated)
				g.redirectToLogin(w, r, path)
				return
			}

			// 3. 役割の解決。役割の正本はプロフィールにあり、Cookieにはない。
			profile, err := g.authn.GetProfile(r.Context(), session.UserID)
			if err != nil {
				slog.Error("route guard failed to load profile",
					slog.String("path", path),
					slog.String("user_id", session.UserID),
					slog.String("error", err.Error()),
				)
				g.redirectHome(w, r)
				return
			}
			if profile == nil || !profile.Role.Valid() {
				// プロフィールのないユーザーは認証主体として扱えない
				g.record(GuardStateUnauthenticated)
				ClearSessionCookies(w, g.config.Cookie)
				g.redirectToLogin(w, r, path)
				return
			}

			// 4. 認可判定。最長一致ルール、未定義パスは最小役割を要求する。
			required := g.requiredRole(path)
			if !profile.Role.AtLeast(required) {
				g.record(GuardStateUnauthorized)
				g.redirectUnauthorized(w, r)
				return
			}

			g.record(GuardStateAuthorized)
			if rotated && g.metrics != nil {
				g.metrics.RecordSessionRotation()
			}

			principal := &Principal{UserID: session.UserID, Role: profile.Role}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// resolveOrRotate はセッションを解決し、期限切れならリフレッシュトークンで
// ローテーションを試みる。ローテーション成功時は新しいCookieをレスポンスに設定する。
// 戻り値のboolはローテーションが行われたかどうか。
func (g *RouteGuard) resolveOrRotate(w http.ResponseWriter, r *http.Request) (*model.Session, bool, error) {
	sessionID := ReadSessionID(r)
	session, err := g.authn.ResolveSession(r.Context(), sessionID)
	if err != nil {
		return nil, false, err
	}
	if session != nil {
		return session, false, nil
	}

	refreshToken := ReadRefreshToken(r)
	if refreshToken == "" {
		return nil, false, nil
	}

	bundle, err := g.authn.Refresh(r.Context(), refreshToken)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			// トークン無効は未認証として扱う。古いCookieは削除する。
			ClearSessionCookies(w, g.config.Cookie)
			return nil, false, nil
		}
		return nil, false, err
	}

	// ローテーション結果を同一レスポンスで中継する
	SetSessionCookies(w, g.config.Cookie, bundle)
	return bundle.Session, true, nil
}

// isPublic はパスが公開扱いかどうかを判定する。
func (g *RouteGuard) isPublic(path string) bool {
	for _, p := range g.config.PublicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range g.config.PublicPrefixes {
		// 末尾スラッシュ付きの設定値もセグメント境界で比較する
		if matchesPrefix(path, strings.TrimSuffix(prefix, "/")) {
			return true
		}
	}
	return false
}

// requiredRole はパスに適用される必要役割を返す。
// ルールはプレフィックスの最長一致で選択し、一致しない場合はDefaultMinRoleを返す。
func (g *RouteGuard) requiredRole(path string) model.Role {
	required := g.config.DefaultMinRole
	longest := -1
	for _, rule := range g.config.Rules {
		if !matchesPrefix(path, rule.Prefix) {
			continue
		}
		if len(rule.Prefix) > longest {
			longest = len(rule.Prefix)
			required = rule.MinRole
		}
	}
	return required
}

// matchesPrefix はパスがプレフィックスにセグメント境界で一致するかを判定する。
// "/admin" は "/admin" と "/admin/users" に一致するが "/administrator" には一致しない。
func matchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func (g *RouteGuard) redirectToLogin(w http.ResponseWriter, r *http.Request, from string) {
	target := g.config.LoginPath + "?" + redirectedFromParam + "=" + url.QueryEscape(from)
	http.Redirect(w, r, target, http.StatusFound)
}

func (g *RouteGuard) redirectUnauthorized(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.config.UnauthorizedPath, http.StatusFound)
}

func (g *RouteGuard) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.config.HomePath, http.StatusFound)
}

func (g *RouteGuard) record(state string) {
	if g.metrics != nil {
		g.metrics.RecordGuardDecision(state)
	}
}
