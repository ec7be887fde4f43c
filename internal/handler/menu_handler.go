package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dishpatch/internal/menu"
	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
)

// MenuServiceInterface はメニューハンドラーが必要とするサービスインターフェース。
type MenuServiceInterface interface {
	ListPublic(ctx context.Context, restaurantID string) ([]*model.MenuItem, error)
	ListAll(ctx context.Context, actorUserID, restaurantID string) ([]*model.MenuItem, error)
	CreateItem(ctx context.Context, actorUserID, restaurantID string, input menu.ItemInput) (*model.MenuItem, error)
	UpdateItem(ctx context.Context, actorUserID, restaurantID, itemID string, input menu.ItemInput) (*model.MenuItem, error)
	SetAvailability(ctx context.Context, actorUserID, restaurantID, itemID string, available bool) (*model.MenuItem, error)
	DeleteItem(ctx context.Context, actorUserID, restaurantID, itemID string) error
}

// MenuHandler はメニュー関連のHTTPハンドラー。
type MenuHandler struct {
	service MenuServiceInterface
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(service MenuServiceInterface) *MenuHandler {
	return &MenuHandler{service: service}
}

// menuItemResponse はメニュー項目のレスポンスDTO。
// DescriptionHTMLは保存時にサニタイズ済みのため、そのまま返す。
type menuItemResponse struct {
	ID              string `json:"id"`
	RestaurantID    string `json:"restaurant_id"`
	Name            string `json:"name"`
	DescriptionHTML string `json:"description_html,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
	Available       bool   `json:"available"`
	SortOrder       int    `json:"sort_order"`
}

func toMenuItemResponse(item *model.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:              item.ID,
		RestaurantID:    item.RestaurantID,
		Name:            item.Name,
		DescriptionHTML: item.DescriptionHTML,
		PriceCents:      item.PriceCents,
		Currency:        item.Currency,
		Available:       item.Available,
		SortOrder:       item.SortOrder,
	}
}

func toMenuItemResponses(items []*model.MenuItem) []menuItemResponse {
	resp := make([]menuItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toMenuItemResponse(item))
	}
	return resp
}

// menuItemRequest はメニュー項目の作成・更新リクエスト。
type menuItemRequest struct {
	Name            string `json:"name"`
	DescriptionHTML string `json:"description_html"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
	Available       bool   `json:"available"`
	SortOrder       int    `json:"sort_order"`
}

func (req menuItemRequest) toInput() menu.ItemInput {
	return menu.ItemInput{
		Name:            req.Name,
		DescriptionHTML: req.DescriptionHTML,
		PriceCents:      req.PriceCents,
		Currency:        req.Currency,
		Available:       req.Available,
		SortOrder:       req.SortOrder,
	}
}

// ListPublic は提供中のメニュー一覧を返す。
// GET /api/restaurants/{id}/menu
func (h *MenuHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toMenuItemResponses(items)})
}

// ListAll は提供停止中を含む全メニューを返す。店舗スタッフ向け。
// GET /api/restaurants/manage/{id}/menu
func (h *MenuHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.service.ListAll(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toMenuItemResponses(items)})
}

// Create はメニュー項目を作成する。
// POST /api/restaurants/manage/{id}/menu
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req menuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.service.CreateItem(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update はメニュー項目を更新する。
// PUT /api/restaurants/manage/{id}/menu/{itemID}
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req menuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// SetAvailability はメニュー項目の提供可否を切り替える。売り切れ対応用。
// PUT /api/restaurants/manage/{id}/menu/{itemID}/availability
func (h *MenuHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Available bool `json:"available"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.service.SetAvailability(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.Available)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete はメニュー項目を削除する。
// DELETE /api/restaurants/manage/{id}/menu/{itemID}
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteItem(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
