// Package account はプロフィール管理と退会処理のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// Service はプロフィール管理と退会処理のサービス層。
type Service struct {
	userRepo       repository.UserRepository
	profileRepo    repository.ProfileRepository
	sessionRepo    repository.SessionRepository
	refreshRepo    repository.RefreshTokenRepository
	actionRepo     repository.ActionTokenRepository
	membershipRepo repository.MembershipRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	refreshRepo repository.RefreshTokenRepository,
	actionRepo repository.ActionTokenRepository,
	membershipRepo repository.MembershipRepository,
) *Service {
	return &Service{
		userRepo:       userRepo,
		profileRepo:    profileRepo,
		sessionRepo:    sessionRepo,
		refreshRepo:    refreshRepo,
		actionRepo:     actionRepo,
		membershipRepo: membershipRepo,
	}
}

// UpdateProfileInput はプロフィール更新の入力。
type UpdateProfileInput struct {
	Name  string
	Phone string
}

// UpdateProfile は名前・電話番号を更新する。役割はこの操作では変更できない。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &model.APIError{
			Code:     "INVALID_PROFILE",
			Message:  "名前が入力されていません。",
			Category: "validation",
			Action:   "名前を入力してください。",
		}
	}

	profile.Name = name
	profile.Phone = strings.TrimSpace(input.Phone)
	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return profile, nil
}

// Withdraw は退会処理を実行する。
// 削除順序: セッション → リフレッシュトークン → アクショントークン → 店舗所属 → ユーザー本体。
// profilesとidentitiesはユーザー削除時にCASCADE削除される。
// 注文履歴は店舗の売上記録として保持され、user_idのみNULLになる。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	// 認証情報を先に無効化し、削除処理中の操作を防ぐ
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	if err := s.refreshRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗しました: %w", err)
	}
	if err := s.actionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("アクショントークンの削除に失敗しました: %w", err)
	}
	if err := s.membershipRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("店舗所属の削除に失敗しました: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理完了", "userID", userID)
	return nil
}
