// Package menu は店舗メニューの管理ドメインロジックを提供する。
package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// defaultCurrency は通貨コードが未指定の場合のデフォルト。
const defaultCurrency = "JPY"

// Sanitizer はHTMLサニタイズのインターフェース。
// security.ContentSanitizerServiceを抽象化してテスタビリティを向上させる。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Service は店舗メニュー管理のサービス層。
// 説明文HTMLは保存前に必ずサニタイズされる。
type Service struct {
	menuRepo       repository.MenuItemRepository
	restaurantRepo repository.RestaurantRepository
	membershipRepo repository.MembershipRepository
	profileRepo    repository.ProfileRepository
	sanitizer      Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	menuRepo repository.MenuItemRepository,
	restaurantRepo repository.RestaurantRepository,
	membershipRepo repository.MembershipRepository,
	profileRepo repository.ProfileRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		menuRepo:       menuRepo,
		restaurantRepo: restaurantRepo,
		membershipRepo: membershipRepo,
		profileRepo:    profileRepo,
		sanitizer:      sanitizer,
	}
}

// ItemInput はメニュー項目の作成・更新の入力。
type ItemInput struct {
	Name            string
	DescriptionHTML string
	PriceCents      int64
	Currency        string
	Available       bool
	SortOrder       int
}

// ListPublic は注文ユーザー向けに提供中のメニュー一覧を返す。
// 店舗が存在しない場合はRESTAURANT_NOT_FOUNDエラーを返す。
func (s *Service) ListPublic(ctx context.Context, restaurantID string) ([]*model.MenuItem, error) {
	if err := s.ensureRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	items, err := s.menuRepo.ListByRestaurantID(ctx, restaurantID, true)
	if err != nil {
		return nil, fmt.Errorf("メニュー一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// ListAll は店舗スタッフ向けに提供停止中の項目を含む全メニューを返す。
// staff以上の店舗内役割が必要。
func (s *Service) ListAll(ctx context.Context, actorUserID, restaurantID string) ([]*model.MenuItem, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipStaff); err != nil {
		return nil, err
	}
	items, err := s.menuRepo.ListByRestaurantID(ctx, restaurantID, false)
	if err != nil {
		return nil, fmt.Errorf("メニュー一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// CreateItem はメニュー項目を作成する。manager以上の店舗内役割が必要。
// 説明文HTMLはサニタイズしてから保存する。
func (s *Service) CreateItem(ctx context.Context, actorUserID, restaurantID string, input ItemInput) (*model.MenuItem, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipManager); err != nil {
		return nil, err
	}
	if err := s.ensureRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	item := &model.MenuItem{
		ID:              uuid.New().String(),
		RestaurantID:    restaurantID,
		Name:            strings.TrimSpace(input.Name),
		DescriptionHTML: s.sanitize(input.DescriptionHTML),
		PriceCents:      input.PriceCents,
		Currency:        normalizeCurrency(input.Currency),
		Available:       input.Available,
		SortOrder:       input.SortOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.menuRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("メニュー項目の保存に失敗しました: %w", err)
	}
	return item, nil
}

// UpdateItem はメニュー項目を更新する。manager以上の店舗内役割が必要。
func (s *Service) UpdateItem(ctx context.Context, actorUserID, restaurantID, itemID string, input ItemInput) (*model.MenuItem, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipManager); err != nil {
		return nil, err
	}

	item, err := s.findItemInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return nil, err
	}
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	item.Name = strings.TrimSpace(input.Name)
	item.DescriptionHTML = s.sanitize(input.DescriptionHTML)
	item.PriceCents = input.PriceCents
	item.Currency = normalizeCurrency(input.Currency)
	item.Available = input.Available
	item.SortOrder = input.SortOrder
	item.UpdatedAt = time.Now()

	if err := s.menuRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("メニュー項目の更新に失敗しました: %w", err)
	}
	return item, nil
}

// SetAvailability はメニュー項目の提供可否を切り替える。staff以上の店舗内役割が必要。
// 売り切れ対応のため、staffでも操作できる。
func (s *Service) SetAvailability(ctx context.Context, actorUserID, restaurantID, itemID string, available bool) (*model.MenuItem, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipStaff); err != nil {
		return nil, err
	}

	item, err := s.findItemInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return nil, err
	}

	item.Available = available
	item.UpdatedAt = time.Now()

	if err := s.menuRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("メニュー項目の更新に失敗しました: %w", err)
	}
	return item, nil
}

// DeleteItem はメニュー項目を削除する。manager以上の店舗内役割が必要。
func (s *Service) DeleteItem(ctx context.Context, actorUserID, restaurantID, itemID string) error {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipManager); err != nil {
		return err
	}

	item, err := s.findItemInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return err
	}

	if err := s.menuRepo.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("メニュー項目の削除に失敗しました: %w", err)
	}
	return nil
}

// findItemInRestaurant は項目を取得し、指定店舗に属することを検証する。
// 他店舗の項目IDを指定された場合もMENU_ITEM_NOT_FOUNDとして扱う。
func (s *Service) findItemInRestaurant(ctx context.Context, restaurantID, itemID string) (*model.MenuItem, error) {
	item, err := s.menuRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("メニュー項目の取得に失敗しました: %w", err)
	}
	if item == nil || item.RestaurantID != restaurantID {
		return nil, model.NewMenuItemNotFoundError(itemID)
	}
	return item, nil
}

// ensureRestaurant は店舗の存在を検証する。
func (s *Service) ensureRestaurant(ctx context.Context, restaurantID string) error {
	restaurant, err := s.restaurantRepo.FindByID(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if restaurant == nil {
		return model.NewRestaurantNotFoundError(restaurantID)
	}
	return nil
}

// requireMembership は操作者が指定店舗でminRole以上の所属を持つことを検証する。
func (s *Service) requireMembership(ctx context.Context, userID, restaurantID string, minRole model.MembershipRole) error {
	// platform_adminは全店舗を操作できる
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil && profile.Role == model.RolePlatformAdmin {
		return nil
	}

	membership, err := s.membershipRepo.FindByUserAndRestaurant(ctx, userID, restaurantID)
	if err != nil {
		return fmt.Errorf("所属の確認に失敗しました: %w", err)
	}
	if membership == nil || !membership.Role.AtLeast(minRole) {
		return model.NewMembershipNotFoundError()
	}
	return nil
}

// sanitize は説明文HTMLをサニタイズする。sanitizer未設定時はタグなしのテキストとして扱う。
func (s *Service) sanitize(rawHTML string) string {
	if s.sanitizer == nil {
		return ""
	}
	return s.sanitizer.Sanitize(rawHTML)
}

// validateItemInput はメニュー項目入力の基本検証を行う。
func validateItemInput(input ItemInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &model.APIError{
			Code:     "INVALID_MENU_ITEM",
			Message:  "メニュー項目名が入力されていません。",
			Category: "validation",
			Action:   "項目名を入力してください。",
		}
	}
	if input.PriceCents < 0 {
		return &model.APIError{
			Code:     "INVALID_MENU_ITEM",
			Message:  "価格には0以上の値を指定してください。",
			Category: "validation",
			Action:   "価格を確認してください。",
		}
	}
	return nil
}

// normalizeCurrency は通貨コードを正規化する。未指定時はJPYを使用する。
func normalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return defaultCurrency
	}
	return c
}
