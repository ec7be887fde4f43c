package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dishpatch/internal/model"
)

// PostgresRestaurantRepo はPostgreSQLを使用した店舗リポジトリ。
type PostgresRestaurantRepo struct {
	db *sql.DB
}

// NewPostgresRestaurantRepo はPostgresRestaurantRepoを生成する。
func NewPostgresRestaurantRepo(db *sql.DB) *PostgresRestaurantRepo {
	return &PostgresRestaurantRepo{db: db}
}

// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresRestaurantRepo) FindByID(ctx context.Context, id string) (*model.Restaurant, error) {
	restaurant := &model.Restaurant{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, address, site_url, logo_data, logo_mime,
		        status, created_at, updated_at
		 FROM restaurants WHERE id = $1`,
		id,
	).Scan(&restaurant.ID, &restaurant.Name, &restaurant.Description, &restaurant.Address,
		&restaurant.SiteURL, &restaurant.LogoData, &restaurant.LogoMime,
		&status, &restaurant.CreatedAt, &restaurant.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}

	restaurant.Status = model.RestaurantStatus(status)
	return restaurant, nil
}

// Create は店舗を作成する。
func (r *PostgresRestaurantRepo) Create(ctx context.Context, restaurant *model.Restaurant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO restaurants (id, name, description, address, site_url,
		                          logo_data, logo_mime, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		restaurant.ID, restaurant.Name, restaurant.Description, restaurant.Address,
		restaurant.SiteURL, restaurant.LogoData, restaurant.LogoMime,
		string(restaurant.Status), restaurant.CreatedAt, restaurant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("店舗の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は店舗情報を更新する。ロゴはUpdateLogo、掲載状態はUpdateStatusで更新する。
func (r *PostgresRestaurantRepo) Update(ctx context.Context, restaurant *model.Restaurant) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE restaurants SET
		    name = $2, description = $3, address = $4, site_url = $5, updated_at = now()
		 WHERE id = $1`,
		restaurant.ID, restaurant.Name, restaurant.Description,
		restaurant.Address, restaurant.SiteURL,
	)
	if err != nil {
		return fmt.Errorf("店舗の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLogo は店舗のロゴ画像を更新する。
func (r *PostgresRestaurantRepo) UpdateLogo(ctx context.Context, restaurantID string, logoData []byte, logoMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE restaurants SET logo_data = $2, logo_mime = $3, updated_at = now() WHERE id = $1`,
		restaurantID, logoData, logoMime,
	)
	if err != nil {
		return fmt.Errorf("ロゴの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は店舗の掲載状態を更新する。
func (r *PostgresRestaurantRepo) UpdateStatus(ctx context.Context, restaurantID string, status model.RestaurantStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE restaurants SET status = $2, updated_at = now() WHERE id = $1`,
		restaurantID, string(status),
	)
	if err != nil {
		return fmt.Errorf("掲載状態の更新に失敗しました: %w", err)
	}
	return nil
}

// ListActive は営業中の店舗一覧を返す。
// 一覧表示にロゴのバイナリは不要なため、logo_dataは読み込まない。
func (r *PostgresRestaurantRepo) ListActive(ctx context.Context) ([]*model.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, address, site_url, logo_mime,
		        status, created_at, updated_at
		 FROM restaurants
		 WHERE status = 'active'
		 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("店舗一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var restaurants []*model.Restaurant
	for rows.Next() {
		restaurant := &model.Restaurant{}
		var status string
		if err := rows.Scan(
			&restaurant.ID, &restaurant.Name, &restaurant.Description, &restaurant.Address,
			&restaurant.SiteURL, &restaurant.LogoMime,
			&status, &restaurant.CreatedAt, &restaurant.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("店舗行の読み取りに失敗しました: %w", err)
		}
		restaurant.Status = model.RestaurantStatus(status)
		restaurants = append(restaurants, restaurant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("店舗一覧の走査に失敗しました: %w", err)
	}

	return restaurants, nil
}

// compile-time interface check
var _ RestaurantRepository = (*PostgresRestaurantRepo)(nil)
