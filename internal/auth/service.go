// Package auth はパスワード認証、OAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge  int           // セッション有効期間（秒）
	RefreshMaxAge  int           // リフレッシュトークン有効期間（秒）
	ActionTokenTTL time.Duration // メール確認・リセットトークンの有効期間
}

// SessionBundle はセッションと、Cookieに載せるリフレッシュトークン本体の組。
// リフレッシュトークン本体はこの構造体の外では平文で保持しない。
type SessionBundle struct {
	Session          *model.Session
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	refreshRepo repository.RefreshTokenRepository
	actionRepo  repository.ActionTokenRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	refreshRepo repository.RefreshTokenRepository,
	actionRepo repository.ActionTokenRepository,
	config ServiceConfig,
) *Service {
	if config.ActionTokenTTL <= 0 {
		config.ActionTokenTTL = 24 * time.Hour
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		refreshRepo: refreshRepo,
		actionRepo:  actionRepo,
		config:      config,
	}
}

// SignUp はメールアドレスとパスワードでユーザーを登録し、セッションを発行する。
// プロフィールは同一トランザクションでcustomer役割として作成される。
// 戻り値の2番目はメール確認トークン（配信は呼び出し側の責務）。
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*SessionBundle, string, error) {
	if len(password) < 8 {
		return nil, "", model.NewWeakPasswordError()
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	newProfile := &model.Profile{
		UserID:    newUser.ID,
		Name:      name,
		Role:      model.RoleCustomer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, newUser, newProfile); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	confirmToken, err := s.issueActionToken(ctx, newUser.ID, model.TokenPurposeEmailConfirm)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue confirmation token: %w", err)
	}

	bundle, err := s.issueSessionBundle(ctx, newUser.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", newUser.ID),
	)

	return bundle, confirmToken, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// メールアドレスの存在有無を区別しない単一の認証エラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*SessionBundle, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	bundle, err := s.issueSessionBundle(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return bundle, nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusers・identities・profilesを同一トランザクションで自動作成する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*SessionBundle, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if identity != nil {
		// 3a. 既存ユーザー: identityからユーザーIDを取得
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: users・identities・profilesを同時に作成
		now := time.Now()
		newUser := &model.User{
			ID:             uuid.New().String(),
			Email:          userInfo.Email,
			EmailConfirmed: true, // IdPが確認済みメールアドレスを返す
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		newProfile := &model.Profile{
			UserID:    newUser.ID,
			Name:      userInfo.Name,
			Role:      model.RoleCustomer,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity, newProfile); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	bundle, err := s.issueSessionBundle(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return bundle, nil
}

// Logout はセッションとリフレッシュトークンを破棄する。
// refreshTokenが空の場合はセッションのみ破棄する。
func (s *Service) Logout(ctx context.Context, sessionID, refreshToken string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if refreshToken != "" {
		token, err := s.refreshRepo.FindByTokenHash(ctx, HashToken(refreshToken))
		if err != nil {
			return fmt.Errorf("failed to find refresh token: %w", err)
		}
		if token != nil && !token.Used() {
			if err := s.refreshRepo.MarkUsed(ctx, token.ID, time.Now()); err != nil {
				return fmt.Errorf("failed to revoke refresh token: %w", err)
			}
		}
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// ResolveSession はセッションIDから有効なセッションを取得する。
// 存在しない・期限切れの場合はnilを返し、クエリ失敗の場合のみエラーを返す。
// 未認証とシステム障害を区別する必要がある呼び出し側（ルートガード）向け。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.sessionRepo.FindByID(ctx, sessionID)
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// Cookieの内容は信用せず、必ずセッションストアへの照会で検証する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// GetProfile はユーザーのプロフィール（役割を含む）を取得する。
// 存在しない場合はnilを返し、クエリ失敗の場合のみエラーを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepo.FindByUserID(ctx, userID)
}

// Refresh はリフレッシュトークンを検証し、新しいセッションとトークンの組を発行する。
// 旧トークンは使用済みとなり、再提示された場合は盗難の兆候として
// 該当ユーザーの全セッション・全リフレッシュトークンを失効させる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*SessionBundle, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	token, err := s.refreshRepo.FindByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if token == nil {
		return nil, model.NewTokenInvalidError()
	}

	now := time.Now()

	if token.Used() {
		// 使用済みトークンの再提示。盗難の可能性があるため全面的に失効させる。
		slog.Warn("reused refresh token detected, revoking all sessions",
			slog.String("user_id", token.UserID),
		)
		if err := s.sessionRepo.DeleteByUserID(ctx, token.UserID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		if err := s.refreshRepo.DeleteByUserID(ctx, token.UserID); err != nil {
			return nil, fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		return nil, model.NewTokenInvalidError()
	}

	if token.Expired(now) {
		return nil, model.NewTokenInvalidError()
	}

	if err := s.refreshRepo.MarkUsed(ctx, token.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark refresh token used: %w", err)
	}

	bundle, err := s.issueSessionBundle(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	slog.Info("session rotated", slog.String("user_id", token.UserID))
	return bundle, nil
}

// ConfirmEmail はメール確認トークンを検証し、メールアドレスを確認済みにする。
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	actionToken, err := s.consumeActionToken(ctx, token, model.TokenPurposeEmailConfirm)
	if err != nil {
		return err
	}

	if err := s.userRepo.ConfirmEmail(ctx, actionToken.UserID); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	slog.Info("email confirmed", slog.String("user_id", actionToken.UserID))
	return nil
}

// RequestPasswordReset はパスワードリセットトークンを発行する。
// メールアドレスの存在有無を外部に漏らさないため、未登録の場合も成功として扱い
// 空のトークンを返す。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return "", nil
	}

	token, err := s.issueActionToken(ctx, user.ID, model.TokenPurposePasswordReset)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}

	slog.Info("password reset requested", slog.String("user_id", user.ID))
	return token, nil
}

// ResetPassword はリセットトークンを検証し、新しいパスワードを設定する。
// 設定後は既存の全セッション・リフレッシュトークンを失効させる。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return model.NewWeakPasswordError()
	}

	actionToken, err := s.consumeActionToken(ctx, token, model.TokenPurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, actionToken.UserID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, actionToken.UserID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if err := s.refreshRepo.DeleteByUserID(ctx, actionToken.UserID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", actionToken.UserID))
	return nil
}

// issueSessionBundle はセッションとリフレッシュトークンを発行し永続化する。
func (s *Service) issueSessionBundle(ctx context.Context, userID string) (*SessionBundle, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	refreshToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	refreshExpiresAt := now.Add(time.Duration(s.config.RefreshMaxAge) * time.Second)
	record := &model.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: refreshExpiresAt,
		CreatedAt: now,
	}

	if err := s.refreshRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &SessionBundle{
		Session:          session,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// issueActionToken はワンタイムトークンを発行し永続化する。
func (s *Service) issueActionToken(ctx context.Context, userID string, purpose model.TokenPurpose) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &model.ActionToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: HashToken(token),
		Purpose:   purpose,
		ExpiresAt: now.Add(s.config.ActionTokenTTL),
		CreatedAt: now,
	}

	if err := s.actionRepo.Create(ctx, record); err != nil {
		return "", err
	}

	return token, nil
}

// consumeActionToken はワンタイムトークンを検証して使用済みにする。
func (s *Service) consumeActionToken(ctx context.Context, token string, purpose model.TokenPurpose) (*model.ActionToken, error) {
	if token == "" {
		return nil, model.NewTokenInvalidError()
	}

	record, err := s.actionRepo.FindByTokenHash(ctx, HashToken(token), purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to find action token: %w", err)
	}
	if record == nil || record.UsedAt != nil || time.Now().After(record.ExpiresAt) {
		return nil, model.NewTokenInvalidError()
	}

	if err := s.actionRepo.MarkUsed(ctx, record.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to mark action token used: %w", err)
	}

	return record, nil
}
