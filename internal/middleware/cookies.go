// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/dishpatch/internal/auth"
)

// Cookie名の定義。セッション関連Cookieの読み書きはすべてこのファイルを経由する。
const (
	// sessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
	sessionCookieName = "dp_session"

	// refreshCookieName はリフレッシュトークンを保持するHTTP Only Cookieの名前。
	refreshCookieName = "dp_refresh"

	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"
)

// CookieConfig はCookie発行時の共通属性を保持する。
// 発行箇所ごとにオプションが食い違わないよう、設定は1箇所に集約する。
type CookieConfig struct {
	Domain string
	Secure bool
}

// cookieOptions は個々のCookieで異なる属性。
type cookieOptions struct {
	name     string
	value    string
	maxAge   int
	httpOnly bool
}

// writeCookie は共通属性を適用してCookieを書き込む。
func writeCookie(w http.ResponseWriter, config CookieConfig, opts cookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     opts.name,
		Value:    opts.value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   opts.maxAge,
		HttpOnly: opts.httpOnly,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie はMaxAge -1でCookieを削除する。
// 値を空にしてブラウザ側の即時失効を指示する。
func clearCookie(w http.ResponseWriter, config CookieConfig, name string) {
	writeCookie(w, config, cookieOptions{
		name:     name,
		value:    "",
		maxAge:   -1,
		httpOnly: true,
	})
}

// SetSessionCookies はセッションIDとリフレッシュトークンをCookieに書き込む。
// ログイン・セッションローテーションの両方で使用する唯一の書き込み経路。
func SetSessionCookies(w http.ResponseWriter, config CookieConfig, bundle *auth.SessionBundle) {
	now := time.Now()
	writeCookie(w, config, cookieOptions{
		name:     sessionCookieName,
		value:    bundle.Session.ID,
		maxAge:   int(bundle.Session.ExpiresAt.Sub(now).Seconds()),
		httpOnly: true,
	})
	writeCookie(w, config, cookieOptions{
		name:     refreshCookieName,
		value:    bundle.RefreshToken,
		maxAge:   int(bundle.RefreshExpiresAt.Sub(now).Seconds()),
		httpOnly: true,
	})
}

// ClearSessionCookies はセッション関連Cookieをすべて削除する。
func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, config, sessionCookieName)
	clearCookie(w, config, refreshCookieName)
}

// ReadSessionID はリクエストからセッションIDを読み取る。未設定の場合は空文字を返す。
func ReadSessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ReadRefreshToken はリクエストからリフレッシュトークンを読み取る。未設定の場合は空文字を返す。
func ReadRefreshToken(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
