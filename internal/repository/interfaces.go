// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error

	// CreateWithIdentity はユーザー・identity・プロフィールを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity, profile *model.Profile) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// ConfirmEmail はメールアドレス確認済みフラグを立てる。
	ConfirmEmail(ctx context.Context, userID string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、profiles、sessions、tokensはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
// 役割の正本はprofilesテーブルにある。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Update は名前・電話番号を更新する。
	Update(ctx context.Context, profile *model.Profile) error

	// UpdateRole はプラットフォーム役割を更新する。
	UpdateRole(ctx context.Context, userID string, role model.Role) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
// トークン本体は保存せず、SHA-256ハッシュのみを扱う。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンを作成する。
	Create(ctx context.Context, token *model.RefreshToken) error
	// FindByTokenHash はハッシュでトークンを検索する。見つからない場合はnilを返す。
	// 期限切れ・使用済みのトークンも返す（判定は呼び出し側で行う）。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// MarkUsed はトークンを使用済みにする。
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	// DeleteByUserID は指定ユーザーの全リフレッシュトークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ActionTokenRepository はメール確認・パスワードリセット用トークンの永続化インターフェース。
type ActionTokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.ActionToken) error
	// FindByTokenHash はハッシュと用途でトークンを検索する。見つからない場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string, purpose model.TokenPurpose) (*model.ActionToken, error)
	// MarkUsed はトークンを使用済みにする。
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	// DeleteByUserID は指定ユーザーの全トークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// RestaurantRepository は店舗データの永続化インターフェース。
type RestaurantRepository interface {
	// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Restaurant, error)

	// Create は店舗を作成する。
	Create(ctx context.Context, restaurant *model.Restaurant) error

	// Update は店舗情報を更新する。
	Update(ctx context.Context, restaurant *model.Restaurant) error

	// UpdateLogo は店舗のロゴ画像を更新する。
	UpdateLogo(ctx context.Context, restaurantID string, logoData []byte, logoMime string) error

	// UpdateStatus は店舗の掲載状態を更新する。
	UpdateStatus(ctx context.Context, restaurantID string, status model.RestaurantStatus) error

	// ListActive は営業中の店舗一覧を返す。
	ListActive(ctx context.Context) ([]*model.Restaurant, error)
}

// MembershipRepository は店舗所属データの永続化インターフェース。
type MembershipRepository interface {
	// FindByUserAndRestaurant はユーザーIDと店舗IDで所属を検索する。見つからない場合はnilを返す。
	FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*model.Membership, error)

	// Create は所属を作成する。
	Create(ctx context.Context, membership *model.Membership) error

	// UpdateRole は店舗内役割を更新する。
	UpdateRole(ctx context.Context, id string, role model.MembershipRole) error

	// Delete は指定IDの所属を削除する。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全所属を削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// ListByRestaurantID は店舗のメンバー一覧を返す。
	ListByRestaurantID(ctx context.Context, restaurantID string) ([]*model.Membership, error)

	// ListByUserIDWithRestaurantInfo はユーザーの所属一覧を店舗情報付きで返す。
	ListByUserIDWithRestaurantInfo(ctx context.Context, userID string) ([]MembershipWithRestaurantInfo, error)
}

// MenuItemRepository はメニュー項目データの永続化インターフェース。
type MenuItemRepository interface {
	// FindByID は指定IDのメニュー項目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.MenuItem, error)

	// ListByRestaurantID は店舗のメニュー一覧をsort_order順で返す。
	// availableOnlyがtrueの場合は提供中の項目のみを返す。
	ListByRestaurantID(ctx context.Context, restaurantID string, availableOnly bool) ([]*model.MenuItem, error)

	// Create はメニュー項目を作成する。
	Create(ctx context.Context, item *model.MenuItem) error

	// Update はメニュー項目を更新する。
	Update(ctx context.Context, item *model.MenuItem) error

	// Delete は指定IDのメニュー項目を削除する。
	Delete(ctx context.Context, id string) error
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// CreateWithItems は注文と明細を同一トランザクションで作成する。
	CreateWithItems(ctx context.Context, order *model.Order) error

	// UpdateStatusIf は現在statusがfromである場合のみtoへ更新する。
	// 更新された場合はtrueを返す。並行する状態変更との競合を検出するCAS操作。
	UpdateStatusIf(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error)

	// ListByUserID はユーザーの注文一覧をplaced_at降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Order, error)

	// ListByRestaurantID は店舗の注文一覧をplaced_at降順で返す。
	// statusが空でない場合は該当状態のみに絞り込む。
	ListByRestaurantID(ctx context.Context, restaurantID string, status model.OrderStatus, limit int) ([]*model.Order, error)

	// ListStalePlaced はbeforeより前に作成され、まだplacedのままの注文を取得する。
	// FOR UPDATE SKIP LOCKEDで排他的に取得し、複数ワーカーの重複処理を防ぐ。
	ListStalePlaced(ctx context.Context, before time.Time, limit int) ([]*model.Order, error)
}

// MembershipWithRestaurantInfo は所属と店舗情報を結合した構造体。
type MembershipWithRestaurantInfo struct {
	model.Membership
	RestaurantName   string
	RestaurantStatus model.RestaurantStatus
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
