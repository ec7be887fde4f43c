// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはパスワード認証を使わないユーザー（OAuthのみ）の場合は空。
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Profile はユーザーのアプリケーション所有プロフィールを表す。
// 役割の正本はここにあり、Cookieやトークンの内容は信用しない。
type Profile struct {
	UserID    string
	Name      string
	Phone     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// IDは暗号学的乱数から生成された不透明な識別子で、Cookieにそのまま載る。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken はセッション再発行用のトークンを表す。
// トークン本体はCookieにのみ存在し、DBにはSHA-256ハッシュだけを保存する。
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired はリフレッシュトークンが期限切れかどうかを判定する。
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Used はローテーション済み（使用済み）かどうかを判定する。
// 使用済みトークンの再提示は盗難の兆候として扱う。
func (t *RefreshToken) Used() bool {
	return t.UsedAt != nil
}

// ActionToken はメール確認・パスワードリセット用のワンタイムトークンを表す。
type ActionToken struct {
	ID        string
	UserID    string
	TokenHash string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// TokenPurpose はActionTokenの用途を表す。
type TokenPurpose string

const (
	// TokenPurposeEmailConfirm はメールアドレス確認用。
	TokenPurposeEmailConfirm TokenPurpose = "email_confirm"
	// TokenPurposePasswordReset はパスワードリセット用。
	TokenPurposePasswordReset TokenPurpose = "password_reset"
)
