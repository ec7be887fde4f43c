// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dishpatch/internal/auth"
	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
)

// oauthStateCookie はOAuthのstate値を保持する一時Cookieの名前。
const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password, name string) (*auth.SessionBundle, string, error)
	SignIn(ctx context.Context, email, password string) (*auth.SessionBundle, error)
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.SessionBundle, error)
	Logout(ctx context.Context, sessionID, refreshToken string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	ConfirmEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// LoginMetrics はログイン試行メトリクスの記録インターフェース。
type LoginMetrics interface {
	RecordLoginAttempt(outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookie  middleware.CookieConfig

	// DevMode が真の場合、メール確認・リセットトークンをAPIレスポンスに含める。
	// メール配信基盤のない開発環境向け。
	DevMode bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics LoginMetrics
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics LoginMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// SignUp はメールアドレスとパスワードでユーザーを登録する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bundle, confirmToken, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetSessionCookies(w, h.config.Cookie, bundle)

	body := map[string]any{"status": "created"}
	if h.config.DevMode {
		body["confirm_token"] = confirmToken
	}
	writeJSON(w, http.StatusCreated, body)
}

// SignIn はメールアドレスとパスワードで認証しセッションを発行する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bundle, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLogin("failure")
		writeError(w, err)
		return
	}

	h.recordLogin("success")
	middleware.SetSessionCookies(w, h.config.Cookie, bundle)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.recordLogin("failure")
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.recordLogin("failure")
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	bundle, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.recordLogin("failure")
		middleware.WriteInternalServerError(w)
		return
	}

	h.recordLogin("success")

	// 4. セッションCookieを設定
	middleware.SetSessionCookies(w, h.config.Cookie, bundle)

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションとリフレッシュトークンを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.ReadSessionID(r)
	if sessionID != "" {
		refreshToken := middleware.ReadRefreshToken(r)
		if err := h.service.Logout(r.Context(), sessionID, refreshToken); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	middleware.ClearSessionCookies(w, h.config.Cookie)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Me は現在のログインユーザー情報（役割を含む）を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.ReadSessionID(r)
	if sessionID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body := map[string]any{
		"id":              user.ID,
		"email":           user.Email,
		"email_confirmed": user.EmailConfirmed,
	}

	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to get profile", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if profile != nil {
		body["name"] = profile.Name
		body["role"] = string(profile.Role)
	}

	writeJSON(w, http.StatusOK, body)
}

// ConfirmEmail はメール確認トークンを検証する。
// POST /auth/confirm-email
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed"})
}

// RequestPasswordReset はパスワードリセットトークンを発行する。
// メールアドレスの存在有無を漏らさないため、常に成功レスポンスを返す。
// POST /auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{"status": "ok"}
	if h.config.DevMode && token != "" {
		body["reset_token"] = token
	}
	writeJSON(w, http.StatusOK, body)
}

// ResetPassword はリセットトークンを検証し新しいパスワードを設定する。
// POST /auth/password-reset/confirm
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// recordLogin はログイン試行メトリクスを記録する。
func (h *AuthHandler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(outcome)
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
