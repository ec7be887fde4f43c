package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Place(ctx context.Context, userID string, input order.PlaceInput) (*model.Order, error)
	Get(ctx context.Context, actorUserID, orderID string) (*model.Order, error)
	ListMine(ctx context.Context, userID string, limit int) ([]*model.Order, error)
	ListForRestaurant(ctx context.Context, actorUserID, restaurantID string, status model.OrderStatus, limit int) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, actorUserID, orderID string, to model.OrderStatus) (*model.Order, error)
}

// OrderHandler は注文関連のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// orderItemResponse は注文明細のレスポンスDTO。
type orderItemResponse struct {
	MenuItemID     string `json:"menu_item_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// orderResponse は注文のレスポンスDTO。
type orderResponse struct {
	ID           string              `json:"id"`
	RestaurantID string              `json:"restaurant_id"`
	Status       string              `json:"status"`
	TotalCents   int64               `json:"total_cents"`
	Currency     string              `json:"currency"`
	Note         string              `json:"note,omitempty"`
	Items        []orderItemResponse `json:"items,omitempty"`
	PlacedAt     time.Time           `json:"placed_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		Status:       string(o.Status),
		TotalCents:   o.TotalCents,
		Currency:     o.Currency,
		Note:         o.Note,
		PlacedAt:     o.PlacedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			MenuItemID:     item.MenuItemID,
			Name:           item.NameSnapshot,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return resp
}

func toOrderResponses(orders []*model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	return resp
}

// Place は注文を受け付ける。
// POST /api/orders
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		RestaurantID string `json:"restaurant_id"`
		Note         string `json:"note"`
		Items        []struct {
			MenuItemID string `json:"menu_item_id"`
			Quantity   int    `json:"quantity"`
		} `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := order.PlaceInput{
		RestaurantID: req.RestaurantID,
		Note:         req.Note,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, order.PlaceItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		})
	}

	placed, err := h.service.Place(r.Context(), userID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(placed))
}

// Get は注文の詳細を返す。
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	o, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ListMine は自分の注文一覧を返す。
// GET /api/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.service.ListMine(r.Context(), userID, parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders)})
}

// ListForRestaurant は店舗の注文一覧を返す。店舗スタッフ向け。
// GET /api/restaurants/manage/{id}/orders?status=placed
func (h *OrderHandler) ListForRestaurant(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	status := model.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.service.ListForRestaurant(r.Context(), userID, chi.URLParam(r, "id"), status, parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders)})
}

// UpdateStatus は注文の状態を遷移させる。
// PUT /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// parseLimit はクエリパラメータから取得件数を読み取る。未指定・不正値は0を返す。
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
