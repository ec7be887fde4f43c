// Package order は注文受付・状態管理のドメインロジックを提供する。
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/dishpatch/internal/metrics"
	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// defaultListLimit は注文一覧のデフォルト取得件数。
const defaultListLimit = 50

// Service は注文受付・状態管理のサービス層。
// 注文明細は注文時点のメニュー内容のスナップショットとして保存される。
type Service struct {
	orderRepo      repository.OrderRepository
	menuRepo       repository.MenuItemRepository
	restaurantRepo repository.RestaurantRepository
	membershipRepo repository.MembershipRepository
	profileRepo    repository.ProfileRepository
	collector      metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orderRepo repository.OrderRepository,
	menuRepo repository.MenuItemRepository,
	restaurantRepo repository.RestaurantRepository,
	membershipRepo repository.MembershipRepository,
	profileRepo repository.ProfileRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		orderRepo:      orderRepo,
		menuRepo:       menuRepo,
		restaurantRepo: restaurantRepo,
		membershipRepo: membershipRepo,
		profileRepo:    profileRepo,
		collector:      collector,
	}
}

// PlaceItemInput は注文明細の入力。
type PlaceItemInput struct {
	MenuItemID string
	Quantity   int
}

// PlaceInput は注文の入力。
type PlaceInput struct {
	RestaurantID string
	Items        []PlaceItemInput
	Note         string
}

// Place は注文を受け付ける。
// フロー: 店舗の営業状態確認 → メニュー項目の検証 → スナップショット作成 → 保存
// 明細の名称と単価は注文時点のメニュー内容を複製し、後のメニュー変更の影響を受けない。
func (s *Service) Place(ctx context.Context, userID string, input PlaceInput) (*model.Order, error) {
	start := time.Now()

	if len(input.Items) == 0 {
		return nil, model.NewEmptyOrderError()
	}

	// 店舗の存在と営業状態の確認
	restaurant, err := s.restaurantRepo.FindByID(ctx, input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if restaurant == nil {
		return nil, model.NewRestaurantNotFoundError(input.RestaurantID)
	}
	if restaurant.Status != model.RestaurantStatusActive {
		return nil, model.NewRestaurantClosedError()
	}

	// メニュー項目の検証とスナップショット作成
	now := time.Now()
	orderID := uuid.New().String()
	var items []model.OrderItem
	var totalCents int64
	currency := ""

	for _, in := range input.Items {
		if in.Quantity <= 0 {
			return nil, model.NewEmptyOrderError()
		}

		menuItem, err := s.menuRepo.FindByID(ctx, in.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("メニュー項目の取得に失敗しました: %w", err)
		}
		// 他店舗の項目・提供停止中の項目は注文できない
		if menuItem == nil || menuItem.RestaurantID != input.RestaurantID || !menuItem.Available {
			return nil, model.NewMenuItemNotFoundError(in.MenuItemID)
		}

		if currency == "" {
			currency = menuItem.Currency
		}

		items = append(items, model.OrderItem{
			ID:             uuid.New().String(),
			OrderID:        orderID,
			MenuItemID:     menuItem.ID,
			NameSnapshot:   menuItem.Name,
			UnitPriceCents: menuItem.PriceCents,
			Quantity:       in.Quantity,
		})
		totalCents += menuItem.PriceCents * int64(in.Quantity)
	}

	order := &model.Order{
		ID:           orderID,
		UserID:       &userID,
		RestaurantID: input.RestaurantID,
		Status:       model.OrderStatusPlaced,
		TotalCents:   totalCents,
		Currency:     currency,
		Note:         input.Note,
		Items:        items,
		PlacedAt:     now,
		UpdatedAt:    now,
	}

	if err := s.orderRepo.CreateWithItems(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の保存に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordOrderPlaced()
		s.collector.RecordOrderPlacementLatency(time.Since(start))
	}

	return order, nil
}

// Get は注文を取得する。
// 注文者本人、店舗メンバー、platform_adminのみが参照できる。
func (s *Service) Get(ctx context.Context, actorUserID, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	ok, err := s.canAccessOrder(ctx, actorUserID, order)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 存在の有無を漏らさないためnot foundとして扱う
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return order, nil
}

// ListMine は自分の注文一覧をplaced_at降順で返す。
func (s *Service) ListMine(ctx context.Context, userID string, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	orders, err := s.orderRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// ListForRestaurant は店舗の注文一覧を返す。staff以上の店舗内役割が必要。
// statusが空でない場合は該当状態のみに絞り込む。
func (s *Service) ListForRestaurant(ctx context.Context, actorUserID, restaurantID string, status model.OrderStatus, limit int) ([]*model.Order, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	orders, err := s.orderRepo.ListByRestaurantID(ctx, restaurantID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// UpdateStatus は注文の状態を遷移させる。
// 許可される操作者:
//   - cancelled: 注文者本人または店舗メンバー
//   - accepted / preparing / ready: 店舗メンバー
//   - delivering / completed: 配達員（courier以上）または店舗メンバー
//
// 状態遷移はCAS操作で行い、並行する変更と競合した場合は
// 最新状態に基づくINVALID_ORDER_TRANSITIONエラーを返す。
func (s *Service) UpdateStatus(ctx context.Context, actorUserID, orderID string, to model.OrderStatus) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	if err := s.authorizeTransition(ctx, actorUserID, order, to); err != nil {
		return nil, err
	}

	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, model.NewInvalidOrderTransitionError(from, to)
	}

	updated, err := s.orderRepo.UpdateStatusIf(ctx, orderID, from, to)
	if err != nil {
		return nil, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	if !updated {
		// 並行する状態変更と競合した。最新状態を取得してエラーを返す。
		latest, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil || latest == nil {
			return nil, model.NewInvalidOrderTransitionError(from, to)
		}
		return nil, model.NewInvalidOrderTransitionError(latest.Status, to)
	}

	order.Status = to
	order.UpdatedAt = time.Now()
	return order, nil
}

// authorizeTransition は操作者が指定の状態遷移を行えるかを検証する。
func (s *Service) authorizeTransition(ctx context.Context, actorUserID string, order *model.Order, to model.OrderStatus) error {
	// platform_adminは全操作が可能
	profile, err := s.profileRepo.FindByUserID(ctx, actorUserID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil && profile.Role == model.RolePlatformAdmin {
		return nil
	}

	isMember, err := s.isRestaurantMember(ctx, actorUserID, order.RestaurantID)
	if err != nil {
		return err
	}

	switch to {
	case model.OrderStatusCancelled:
		isOwner := order.UserID != nil && *order.UserID == actorUserID
		if isOwner || isMember {
			return nil
		}
	case model.OrderStatusAccepted, model.OrderStatusPreparing, model.OrderStatusReady:
		if isMember {
			return nil
		}
	case model.OrderStatusDelivering, model.OrderStatusCompleted:
		if isMember {
			return nil
		}
		if profile != nil && profile.Role.AtLeast(model.RoleCourier) {
			return nil
		}
	}

	return model.NewMembershipNotFoundError()
}

// canAccessOrder は操作者が注文を参照できるかを判定する。
func (s *Service) canAccessOrder(ctx context.Context, actorUserID string, order *model.Order) (bool, error) {
	if order.UserID != nil && *order.UserID == actorUserID {
		return true, nil
	}

	profile, err := s.profileRepo.FindByUserID(ctx, actorUserID)
	if err != nil {
		return false, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil && profile.Role == model.RolePlatformAdmin {
		return true, nil
	}

	return s.isRestaurantMember(ctx, actorUserID, order.RestaurantID)
}

// isRestaurantMember は操作者が店舗のメンバーかどうかを判定する。
func (s *Service) isRestaurantMember(ctx context.Context, userID, restaurantID string) (bool, error) {
	membership, err := s.membershipRepo.FindByUserAndRestaurant(ctx, userID, restaurantID)
	if err != nil {
		return false, fmt.Errorf("所属の確認に失敗しました: %w", err)
	}
	return membership != nil, nil
}

// requireMembership は操作者が店舗メンバーであることを検証する。
func (s *Service) requireMembership(ctx context.Context, userID, restaurantID string) error {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil && profile.Role == model.RolePlatformAdmin {
		return nil
	}

	isMember, err := s.isRestaurantMember(ctx, userID, restaurantID)
	if err != nil {
		return err
	}
	if !isMember {
		return model.NewMembershipNotFoundError()
	}
	return nil
}
