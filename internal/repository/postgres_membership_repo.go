package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dishpatch/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用した店舗所属リポジトリ。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// FindByUserAndRestaurant はユーザーIDと店舗IDで所属を検索する。見つからない場合はnilを返す。
func (r *PostgresMembershipRepo) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*model.Membership, error) {
	membership := &model.Membership{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, restaurant_id, role, created_at, updated_at
		 FROM memberships
		 WHERE user_id = $1 AND restaurant_id = $2`,
		userID, restaurantID,
	).Scan(&membership.ID, &membership.UserID, &membership.RestaurantID, &role,
		&membership.CreatedAt, &membership.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}

	membership.Role = model.MembershipRole(role)
	return membership, nil
}

// Create は所属を作成する。
func (r *PostgresMembershipRepo) Create(ctx context.Context, membership *model.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, restaurant_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		membership.ID, membership.UserID, membership.RestaurantID,
		string(membership.Role), membership.CreatedAt, membership.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// UpdateRole は店舗内役割を更新する。
func (r *PostgresMembershipRepo) UpdateRole(ctx context.Context, id string, role model.MembershipRole) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET role = $2, updated_at = now() WHERE id = $1`,
		id, string(role),
	)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	return nil
}

// Delete は指定IDの所属を削除する。
func (r *PostgresMembershipRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全所属を削除する。
func (r *PostgresMembershipRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user memberships: %w", err)
	}
	return nil
}

// ListByRestaurantID は店舗のメンバー一覧を返す。
func (r *PostgresMembershipRepo) ListByRestaurantID(ctx context.Context, restaurantID string) ([]*model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, restaurant_id, role, created_at, updated_at
		 FROM memberships
		 WHERE restaurant_id = $1
		 ORDER BY created_at ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		membership := &model.Membership{}
		var role string
		if err := rows.Scan(
			&membership.ID, &membership.UserID, &membership.RestaurantID, &role,
			&membership.CreatedAt, &membership.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		membership.Role = model.MembershipRole(role)
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// ListByUserIDWithRestaurantInfo はユーザーの所属一覧を店舗情報付きで返す。
func (r *PostgresMembershipRepo) ListByUserIDWithRestaurantInfo(ctx context.Context, userID string) ([]MembershipWithRestaurantInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.restaurant_id, m.role, m.created_at, m.updated_at,
		        r.name, r.status
		 FROM memberships m
		 INNER JOIN restaurants r ON m.restaurant_id = r.id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships with restaurant info: %w", err)
	}
	defer rows.Close()

	var result []MembershipWithRestaurantInfo
	for rows.Next() {
		var info MembershipWithRestaurantInfo
		var role, status string
		if err := rows.Scan(
			&info.ID, &info.UserID, &info.RestaurantID, &role,
			&info.CreatedAt, &info.UpdatedAt,
			&info.RestaurantName, &status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		info.Role = model.MembershipRole(role)
		info.RestaurantStatus = model.RestaurantStatus(status)
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate membership rows: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
