package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dishpatch/internal/model"
)

// PostgresMenuItemRepo はPostgreSQLを使用したメニュー項目リポジトリ。
type PostgresMenuItemRepo struct {
	db *sql.DB
}

// NewPostgresMenuItemRepo はPostgresMenuItemRepoを生成する。
func NewPostgresMenuItemRepo(db *sql.DB) *PostgresMenuItemRepo {
	return &PostgresMenuItemRepo{db: db}
}

// FindByID は指定IDのメニュー項目を取得する。見つからない場合はnilを返す。
func (r *PostgresMenuItemRepo) FindByID(ctx context.Context, id string) (*model.MenuItem, error) {
	item := &model.MenuItem{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, restaurant_id, name, description_html, price_cents, currency,
		        available, sort_order, created_at, updated_at
		 FROM menu_items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.RestaurantID, &item.Name, &item.DescriptionHTML,
		&item.PriceCents, &item.Currency, &item.Available, &item.SortOrder,
		&item.CreatedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find menu item: %w", err)
	}

	return item, nil
}

// ListByRestaurantID は店舗のメニュー一覧をsort_order順で返す。
func (r *PostgresMenuItemRepo) ListByRestaurantID(ctx context.Context, restaurantID string, availableOnly bool) ([]*model.MenuItem, error) {
	query := `SELECT id, restaurant_id, name, description_html, price_cents, currency,
	                 available, sort_order, created_at, updated_at
	          FROM menu_items
	          WHERE restaurant_id = $1`
	if availableOnly {
		query += ` AND available = TRUE`
	}
	query += ` ORDER BY sort_order ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()

	var items []*model.MenuItem
	for rows.Next() {
		item := &model.MenuItem{}
		if err := rows.Scan(
			&item.ID, &item.RestaurantID, &item.Name, &item.DescriptionHTML,
			&item.PriceCents, &item.Currency, &item.Available, &item.SortOrder,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu items: %w", err)
	}

	return items, nil
}

// Create はメニュー項目を作成する。
func (r *PostgresMenuItemRepo) Create(ctx context.Context, item *model.MenuItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_items (id, restaurant_id, name, description_html, price_cents,
		                         currency, available, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.RestaurantID, item.Name, item.DescriptionHTML, item.PriceCents,
		item.Currency, item.Available, item.SortOrder, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}
	return nil
}

// Update はメニュー項目を更新する。
func (r *PostgresMenuItemRepo) Update(ctx context.Context, item *model.MenuItem) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET
		    name = $2, description_html = $3, price_cents = $4, currency = $5,
		    available = $6, sort_order = $7, updated_at = now()
		 WHERE id = $1`,
		item.ID, item.Name, item.DescriptionHTML, item.PriceCents, item.Currency,
		item.Available, item.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to update menu item: %w", err)
	}
	return nil
}

// Delete は指定IDのメニュー項目を削除する。
func (r *PostgresMenuItemRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM menu_items WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MenuItemRepository = (*PostgresMenuItemRepo)(nil)
