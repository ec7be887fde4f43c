package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/dishpatch/internal/account"
	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	UpdateProfile(ctx context.Context, userID string, input account.UpdateProfileInput) (*model.Profile, error)
	Withdraw(ctx context.Context, userID string) error
}

// ProfileGetter はプロフィール取得のインターフェース。
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// AccountHandler はプロフィール管理・退会のHTTPハンドラー。
type AccountHandler struct {
	service  AccountServiceInterface
	profiles ProfileGetter
	cookie   middleware.CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, profiles ProfileGetter, cookie middleware.CookieConfig) *AccountHandler {
	return &AccountHandler{
		service:  service,
		profiles: profiles,
		cookie:   cookie,
	}
}

// profileResponse はプロフィールのレスポンスDTO。
type profileResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

// GetProfile は自分のプロフィールを返す。
// GET /api/profile
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeError(w, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Name:  profile.Name,
		Phone: profile.Phone,
		Role:  string(profile.Role),
	})
}

// UpdateProfile は名前・電話番号を更新する。
// PUT /api/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, account.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Name:  profile.Name,
		Phone: profile.Phone,
		Role:  string(profile.Role),
	})
}

// Withdraw は退会処理を実行し、セッションCookieを削除する。
// DELETE /api/users/me
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	middleware.ClearSessionCookies(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
