package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, restaurant_id, status, total_cents, currency, note,
		        placed_at, updated_at
		 FROM orders WHERE id = $1`,
		id,
	).Scan(&order.ID, &order.UserID, &order.RestaurantID, &status,
		&order.TotalCents, &order.Currency, &order.Note,
		&order.PlacedAt, &order.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	order.Status = model.OrderStatus(status)

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *PostgresOrderRepo) listItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, menu_item_id, name_snapshot, unit_price_cents, quantity
		 FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文明細の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.MenuItemID,
			&item.NameSnapshot, &item.UnitPriceCents, &item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("注文明細の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文明細の走査に失敗しました: %w", err)
	}

	return items, nil
}

// CreateWithItems は注文と明細を同一トランザクションで作成する。
func (r *PostgresOrderRepo) CreateWithItems(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, restaurant_id, status, total_cents,
		                     currency, note, placed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.UserID, order.RestaurantID, string(order.Status),
		order.TotalCents, order.Currency, order.Note, order.PlacedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, menu_item_id, name_snapshot,
			                          unit_price_cents, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.OrderID, item.MenuItemID, item.NameSnapshot,
			item.UnitPriceCents, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("注文明細の作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateStatusIf は現在statusがfromである場合のみtoへ更新する。
// 更新された場合はtrueを返す。並行する状態変更との競合を検出するCAS操作。
func (r *PostgresOrderRepo) UpdateStatusIf(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListByUserID はユーザーの注文一覧をplaced_at降順で返す。明細は含まない。
func (r *PostgresOrderRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, restaurant_id, status, total_cents, currency, note,
		        placed_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY placed_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ListByRestaurantID は店舗の注文一覧をplaced_at降順で返す。明細は含まない。
func (r *PostgresOrderRepo) ListByRestaurantID(ctx context.Context, restaurantID string, status model.OrderStatus, limit int) ([]*model.Order, error) {
	query := `SELECT id, user_id, restaurant_id, status, total_cents, currency, note,
	                 placed_at, updated_at
	          FROM orders
	          WHERE restaurant_id = $1`
	args := []any{restaurantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY placed_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("店舗注文一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ListStalePlaced はbeforeより前に作成され、まだplacedのままの注文を取得する。
// FOR UPDATE SKIP LOCKEDで排他的に取得し、複数ワーカーの重複処理を防ぐ。
func (r *PostgresOrderRepo) ListStalePlaced(ctx context.Context, before time.Time, limit int) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, restaurant_id, status, total_cents, currency, note,
		        placed_at, updated_at
		 FROM orders
		 WHERE status = 'placed' AND placed_at < $1
		 ORDER BY placed_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("期限切れ注文の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]*model.Order, error) {
	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		var status string
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.RestaurantID, &status,
			&order.TotalCents, &order.Currency, &order.Note,
			&order.PlacedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("注文行の読み取りに失敗しました: %w", err)
		}
		order.Status = model.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文一覧の走査に失敗しました: %w", err)
	}

	return orders, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
