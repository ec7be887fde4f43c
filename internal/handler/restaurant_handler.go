package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
	"github.com/hitoshi/dishpatch/internal/restaurant"
)

// RestaurantServiceInterface は店舗ハンドラーが必要とするサービスインターフェース。
type RestaurantServiceInterface interface {
	Create(ctx context.Context, ownerUserID string, input restaurant.CreateInput) (*model.Restaurant, error)
	Get(ctx context.Context, restaurantID string) (*model.Restaurant, error)
	ListActive(ctx context.Context) ([]*model.Restaurant, error)
	Update(ctx context.Context, actorUserID, restaurantID string, input restaurant.UpdateInput) (*model.Restaurant, error)
	UpdateStatus(ctx context.Context, restaurantID string, status model.RestaurantStatus) error
	RefreshLogo(ctx context.Context, actorUserID, restaurantID string) (*model.Restaurant, error)
	AddMember(ctx context.Context, actorUserID, restaurantID, targetUserID string, role model.MembershipRole) (*model.Membership, error)
	UpdateMemberRole(ctx context.Context, actorUserID, restaurantID, targetUserID string, role model.MembershipRole) error
	RemoveMember(ctx context.Context, actorUserID, restaurantID, targetUserID string) error
	ListMembers(ctx context.Context, actorUserID, restaurantID string) ([]*model.Membership, error)
	GetUserRestaurants(ctx context.Context, userID string) ([]repository.MembershipWithRestaurantInfo, error)
}

// RestaurantHandler は店舗関連のHTTPハンドラー。
type RestaurantHandler struct {
	service RestaurantServiceInterface
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(service RestaurantServiceInterface) *RestaurantHandler {
	return &RestaurantHandler{service: service}
}

// restaurantResponse は店舗のレスポンスDTO。ロゴ本体は専用エンドポイントで配信する。
type restaurantResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	SiteURL     string `json:"site_url,omitempty"`
	Status      string `json:"status"`
	HasLogo     bool   `json:"has_logo"`
}

func toRestaurantResponse(r *model.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Address:     r.Address,
		SiteURL:     r.SiteURL,
		Status:      string(r.Status),
		HasLogo:     len(r.LogoData) > 0 || r.LogoMime != "",
	}
}

// List は営業中の店舗一覧を返す。
// GET /api/restaurants
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		resp = append(resp, toRestaurantResponse(rest))
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurants": resp})
}

// Get は店舗情報を返す。
// GET /api/restaurants/{id}
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	rest, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(rest))
}

// Logo は店舗ロゴ画像を配信する。
// GET /api/restaurants/{id}/logo
func (h *RestaurantHandler) Logo(w http.ResponseWriter, r *http.Request) {
	rest, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rest.LogoData) == 0 {
		http.Error(w, "logo not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", rest.LogoMime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(rest.LogoData)
}

// Create は店舗を登録する。作成者はオーナーになる。
// POST /api/restaurants
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Address     string `json:"address"`
		SiteURL     string `json:"site_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rest, err := h.service.Create(r.Context(), userID, restaurant.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		SiteURL:     req.SiteURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRestaurantResponse(rest))
}

// Mine は自分が所属する店舗の一覧を返す。
// GET /api/restaurants/mine
func (h *RestaurantHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	memberships, err := h.service.GetUserRestaurants(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	type mineResponse struct {
		RestaurantID     string `json:"restaurant_id"`
		RestaurantName   string `json:"restaurant_name"`
		RestaurantStatus string `json:"restaurant_status"`
		Role             string `json:"role"`
	}
	resp := make([]mineResponse, 0, len(memberships))
	for _, m := range memberships {
		resp = append(resp, mineResponse{
			RestaurantID:     m.RestaurantID,
			RestaurantName:   m.RestaurantName,
			RestaurantStatus: string(m.RestaurantStatus),
			Role:             string(m.Role),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": resp})
}

// Update は店舗情報を更新する。
// PATCH /api/restaurants/manage/{id}
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Address     string `json:"address"`
		SiteURL     string `json:"site_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rest, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), restaurant.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		SiteURL:     req.SiteURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(rest))
}

// RefreshLogo は店舗サイトからロゴを再取得する。
// POST /api/restaurants/manage/{id}/logo/refresh
func (h *RestaurantHandler) RefreshLogo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rest, err := h.service.RefreshLogo(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(rest))
}

// ListMembers は店舗のメンバー一覧を返す。
// GET /api/restaurants/manage/{id}/members
func (h *RestaurantHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	members, err := h.service.ListMembers(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	type memberResponse struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberResponse{UserID: m.UserID, Role: string(m.Role)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": resp})
}

// AddMember は店舗にメンバーを追加する。
// POST /api/restaurants/manage/{id}/members
func (h *RestaurantHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	membership, err := h.service.AddMember(r.Context(), userID, chi.URLParam(r, "id"), req.UserID, model.MembershipRole(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": membership.UserID,
		"role":    string(membership.Role),
	})
}

// UpdateMemberRole はメンバーの店舗内役割を変更する。
// PATCH /api/restaurants/manage/{id}/members/{userID}
func (h *RestaurantHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err = h.service.UpdateMemberRole(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userID"), model.MembershipRole(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// RemoveMember は店舗からメンバーを削除する。
// DELETE /api/restaurants/manage/{id}/members/{userID}
func (h *RestaurantHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	err = h.service.RemoveMember(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus は店舗の掲載状態を変更する。運営管理API。
// PUT /api/admin/restaurants/{id}/status
func (h *RestaurantHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), model.RestaurantStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
