package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークンリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Create はリフレッシュトークンを作成する。
func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// FindByTokenHash はハッシュでトークンを検索する。見つからない場合はnilを返す。
// 期限切れ・使用済みのトークンも返す（盗難検知のため判定は呼び出し側で行う）。
func (r *PostgresRefreshTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at
		 FROM refresh_tokens
		 WHERE token_hash = $1`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	return token, nil
}

// MarkUsed はトークンを使用済みにする。
func (r *PostgresRefreshTokenRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET used_at = $2 WHERE id = $1`,
		id, usedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark refresh token used: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全リフレッシュトークンを削除する。
func (r *PostgresRefreshTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user refresh tokens: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)

// PostgresActionTokenRepo はPostgreSQLを使用したアクショントークンリポジトリ。
// メール確認・パスワードリセットのワンタイムトークンを扱う。
type PostgresActionTokenRepo struct {
	db *sql.DB
}

// NewPostgresActionTokenRepo はPostgresActionTokenRepoを生成する。
func NewPostgresActionTokenRepo(db *sql.DB) *PostgresActionTokenRepo {
	return &PostgresActionTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresActionTokenRepo) Create(ctx context.Context, token *model.ActionToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_tokens (id, user_id, token_hash, purpose, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.TokenHash, string(token.Purpose), token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create action token: %w", err)
	}
	return nil
}

// FindByTokenHash はハッシュと用途でトークンを検索する。見つからない場合はnilを返す。
func (r *PostgresActionTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string, purpose model.TokenPurpose) (*model.ActionToken, error) {
	token := &model.ActionToken{}
	var p string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, purpose, expires_at, used_at, created_at
		 FROM action_tokens
		 WHERE token_hash = $1 AND purpose = $2`,
		tokenHash, string(purpose),
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &p, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find action token: %w", err)
	}

	token.Purpose = model.TokenPurpose(p)
	return token, nil
}

// MarkUsed はトークンを使用済みにする。
func (r *PostgresActionTokenRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE action_tokens SET used_at = $2 WHERE id = $1`,
		id, usedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark action token used: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全トークンを削除する。
func (r *PostgresActionTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user action tokens: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ActionTokenRepository = (*PostgresActionTokenRepo)(nil)
