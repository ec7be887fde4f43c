// Package restaurant は店舗登録・管理のドメインロジックを提供する。
package restaurant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// Service は店舗登録・管理のサービス層。
// 登録 → オーナー所属作成 → ロゴ取得のフローを統括する。
type Service struct {
	restaurantRepo repository.RestaurantRepository
	membershipRepo repository.MembershipRepository
	profileRepo    repository.ProfileRepository
	userRepo       repository.UserRepository
	ssrfGuard      SSRFValidator
	logoFetcher    LogoFetcherService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	restaurantRepo repository.RestaurantRepository,
	membershipRepo repository.MembershipRepository,
	profileRepo repository.ProfileRepository,
	userRepo repository.UserRepository,
	ssrfGuard SSRFValidator,
	logoFetcher LogoFetcherService,
) *Service {
	return &Service{
		restaurantRepo: restaurantRepo,
		membershipRepo: membershipRepo,
		profileRepo:    profileRepo,
		userRepo:       userRepo,
		ssrfGuard:      ssrfGuard,
		logoFetcher:    logoFetcher,
	}
}

// CreateInput は店舗登録の入力。
type CreateInput struct {
	Name        string
	Description string
	Address     string
	SiteURL     string
}

// Create は店舗を登録する。
// フロー: サイトURL検証 → 店舗保存 → オーナー所属作成 → 役割昇格 → ロゴ取得
// 作成者はowner所属となり、プラットフォーム役割がrestaurant_admin未満の場合は昇格する。
func (s *Service) Create(ctx context.Context, ownerUserID string, input CreateInput) (*model.Restaurant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewInvalidURLError("店舗名が入力されていません")
	}

	// サイトURLのSSRF検証（空の場合はスキップ）
	siteURL := strings.TrimSpace(input.SiteURL)
	if siteURL != "" && s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(siteURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	now := time.Now()
	restaurant := &model.Restaurant{
		ID:          uuid.New().String(),
		Name:        name,
		Description: input.Description,
		Address:     input.Address,
		SiteURL:     siteURL,
		Status:      model.RestaurantStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.restaurantRepo.Create(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("店舗の保存に失敗しました: %w", err)
	}

	// オーナー所属の作成
	membership := &model.Membership{
		ID:           uuid.New().String(),
		UserID:       ownerUserID,
		RestaurantID: restaurant.ID,
		Role:         model.MembershipOwner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.membershipRepo.Create(ctx, membership); err != nil {
		return nil, fmt.Errorf("オーナー所属の作成に失敗しました: %w", err)
	}

	// プラットフォーム役割の昇格
	if err := s.promoteRole(ctx, ownerUserID, model.RoleRestaurantAdmin); err != nil {
		return nil, err
	}

	// ロゴ取得（同期実行。取得失敗時はロゴなしとして保存）
	s.fetchAndSaveLogo(ctx, restaurant)

	return restaurant, nil
}

// Get は店舗情報を取得する。見つからない場合はRESTAURANT_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, restaurantID string) (*model.Restaurant, error) {
	restaurant, err := s.restaurantRepo.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if restaurant == nil {
		return nil, model.NewRestaurantNotFoundError(restaurantID)
	}
	return restaurant, nil
}

// ListActive は営業中の店舗一覧を返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	restaurants, err := s.restaurantRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("店舗一覧の取得に失敗しました: %w", err)
	}
	return restaurants, nil
}

// UpdateInput は店舗更新の入力。
type UpdateInput struct {
	Name        string
	Description string
	Address     string
	SiteURL     string
}

// Update は店舗情報を更新する。manager以上の店舗内役割が必要。
// サイトURLが変更された場合はロゴを再取得する。
func (s *Service) Update(ctx context.Context, actorUserID, restaurantID string, input UpdateInput) (*model.Restaurant, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipManager); err != nil {
		return nil, err
	}

	restaurant, err := s.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewInvalidURLError("店舗名が入力されていません")
	}

	siteURL := strings.TrimSpace(input.SiteURL)
	siteURLChanged := siteURL != restaurant.SiteURL
	if siteURL != "" && siteURLChanged && s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(siteURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	restaurant.Name = name
	restaurant.Description = input.Description
	restaurant.Address = input.Address
	restaurant.SiteURL = siteURL
	restaurant.UpdatedAt = time.Now()

	if err := s.restaurantRepo.Update(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("店舗の更新に失敗しました: %w", err)
	}

	if siteURLChanged {
		s.fetchAndSaveLogo(ctx, restaurant)
	}

	return restaurant, nil
}

// UpdateStatus は店舗の掲載状態を更新する。運営管理APIから呼ばれる。
func (s *Service) UpdateStatus(ctx context.Context, restaurantID string, status model.RestaurantStatus) error {
	switch status {
	case model.RestaurantStatusActive, model.RestaurantStatusSuspended, model.RestaurantStatusClosed:
	default:
		return model.NewInvalidURLError(fmt.Sprintf("不正な掲載状態です: %s", status))
	}

	if _, err := s.Get(ctx, restaurantID); err != nil {
		return err
	}

	if err := s.restaurantRepo.UpdateStatus(ctx, restaurantID, status); err != nil {
		return fmt.Errorf("掲載状態の更新に失敗しました: %w", err)
	}
	return nil
}

// RefreshLogo は店舗サイトからロゴを再取得する。manager以上の店舗内役割が必要。
// ロゴを検出できなかった場合はLOGO_NOT_DETECTEDエラーを返す。
func (s *Service) RefreshLogo(ctx context.Context, actorUserID, restaurantID string) (*model.Restaurant, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipManager); err != nil {
		return nil, err
	}

	restaurant, err := s.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant.SiteURL == "" {
		return nil, model.NewLogoNotDetectedError("")
	}

	data, mimeType, err := s.logoFetcher.FetchLogoForSite(ctx, restaurant.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("ロゴの取得に失敗しました: %w", err)
	}
	if data == nil {
		return nil, model.NewLogoNotDetectedError(restaurant.SiteURL)
	}

	if err := s.restaurantRepo.UpdateLogo(ctx, restaurant.ID, data, mimeType); err != nil {
		return nil, fmt.Errorf("ロゴの保存に失敗しました: %w", err)
	}

	restaurant.LogoData = data
	restaurant.LogoMime = mimeType
	return restaurant, nil
}

// AddMember は店舗にメンバーを追加する。owner権限が必要。
// 追加されたユーザーのプラットフォーム役割がrestaurant_staff未満の場合は昇格する。
func (s *Service) AddMember(ctx context.Context, actorUserID, restaurantID, targetUserID string, role model.MembershipRole) (*model.Membership, error) {
	if !role.Valid() {
		return nil, model.NewInvalidURLError(fmt.Sprintf("不正な店舗内役割です: %s", role))
	}

	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipOwner); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, restaurantID); err != nil {
		return nil, err
	}

	// 対象ユーザーの存在確認
	target, err := s.userRepo.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	// 重複チェック
	existing, err := s.membershipRepo.FindByUserAndRestaurant(ctx, targetUserID, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("所属の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateMembershipError()
	}

	now := time.Now()
	membership := &model.Membership{
		ID:           uuid.New().String(),
		UserID:       targetUserID,
		RestaurantID: restaurantID,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.membershipRepo.Create(ctx, membership); err != nil {
		return nil, fmt.Errorf("所属の作成に失敗しました: %w", err)
	}

	if err := s.promoteRole(ctx, targetUserID, model.RoleRestaurantStaff); err != nil {
		return nil, err
	}

	return membership, nil
}

// UpdateMemberRole はメンバーの店舗内役割を変更する。owner権限が必要。
func (s *Service) UpdateMemberRole(ctx context.Context, actorUserID, restaurantID, targetUserID string, role model.MembershipRole) error {
	if !role.Valid() {
		return model.NewInvalidURLError(fmt.Sprintf("不正な店舗内役割です: %s", role))
	}

	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipOwner); err != nil {
		return err
	}

	membership, err := s.membershipRepo.FindByUserAndRestaurant(ctx, targetUserID, restaurantID)
	if err != nil {
		return fmt.Errorf("所属の確認に失敗しました: %w", err)
	}
	if membership == nil {
		return model.NewMembershipNotFoundError()
	}

	if err := s.membershipRepo.UpdateRole(ctx, membership.ID, role); err != nil {
		return fmt.Errorf("店舗内役割の更新に失敗しました: %w", err)
	}
	return nil
}

// RemoveMember は店舗からメンバーを削除する。owner権限が必要。
// オーナー自身の削除は許可しない（店舗が管理不能になるのを防ぐ）。
func (s *Service) RemoveMember(ctx context.Context, actorUserID, restaurantID, targetUserID string) error {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipOwner); err != nil {
		return err
	}

	membership, err := s.membershipRepo.FindByUserAndRestaurant(ctx, targetUserID, restaurantID)
	if err != nil {
		return fmt.Errorf("所属の確認に失敗しました: %w", err)
	}
	if membership == nil {
		return model.NewMembershipNotFoundError()
	}

	if membership.Role == model.MembershipOwner {
		return model.NewDuplicateMembershipError()
	}

	if err := s.membershipRepo.Delete(ctx, membership.ID); err != nil {
		return fmt.Errorf("所属の削除に失敗しました: %w", err)
	}
	return nil
}

// ListMembers は店舗のメンバー一覧を返す。staff以上の店舗内役割が必要。
func (s *Service) ListMembers(ctx context.Context, actorUserID, restaurantID string) ([]*model.Membership, error) {
	if err := s.requireMembership(ctx, actorUserID, restaurantID, model.MembershipStaff); err != nil {
		return nil, err
	}

	members, err := s.membershipRepo.ListByRestaurantID(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	return members, nil
}

// GetUserRestaurants はユーザーが所属する店舗一覧を店舗情報付きで返す。
func (s *Service) GetUserRestaurants(ctx context.Context, userID string) ([]repository.MembershipWithRestaurantInfo, error) {
	memberships, err := s.membershipRepo.ListByUserIDWithRestaurantInfo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("所属店舗一覧の取得に失敗しました: %w", err)
	}
	return memberships, nil
}

// requireMembership は操作者が指定店舗でminRole以上の所属を持つことを検証する。
// 所属がない、または役割が不足している場合はMEMBERSHIP_NOT_FOUNDエラーを返す。
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

// promoteRole はユーザーのプラットフォーム役割がminRole未満の場合に昇格する。
// 既にminRole以上の場合は何もしない。
func (s *Service) promoteRole(ctx context.Context, userID string, minRole model.Role) error {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return model.NewUserNotFoundError()
	}
	if profile.Role.AtLeast(minRole) {
		return nil
	}
	if err := s.profileRepo.UpdateRole(ctx, userID, minRole); err != nil {
		return fmt.Errorf("役割の更新に失敗しました: %w", err)
	}
	return nil
}

// fetchAndSaveLogo は店舗サイトからロゴを取得して保存する。
// 取得失敗時はログ出力のみで、エラーを返さない。
func (s *Service) fetchAndSaveLogo(ctx context.Context, restaurant *model.Restaurant) {
	if s.logoFetcher == nil || restaurant.SiteURL == "" {
		return
	}

	data, mimeType, err := s.logoFetcher.FetchLogoForSite(ctx, restaurant.SiteURL)
	if err != nil {
		slog.Warn("ロゴ取得エラー", "restaurantID", restaurant.ID, "siteURL", restaurant.SiteURL, "error", err)
		return
	}

	if data == nil {
		slog.Info("ロゴ未検出（ロゴなしとして保存）", "restaurantID", restaurant.ID, "siteURL", restaurant.SiteURL)
		return
	}

	if err := s.restaurantRepo.UpdateLogo(ctx, restaurant.ID, data, mimeType); err != nil {
		slog.Warn("ロゴ保存エラー", "restaurantID", restaurant.ID, "error", err)
		return
	}

	restaurant.LogoData = data
	restaurant.LogoMime = mimeType
	slog.Info("ロゴ保存完了", "restaurantID", restaurant.ID, "mimeType", mimeType, "size", len(data))
}
