// Package model はドメインモデルを定義する。
package model

import "time"

// Order は注文を表す。
// 注文明細は注文時点のメニュー内容のスナップショットであり、
// 後からメニューが変更されても注文内容は変わらない。
type Order struct {
	ID           string
	UserID       *string
	RestaurantID string
	Status       OrderStatus
	TotalCents   int64
	Currency     string
	Note         string
	Items        []OrderItem
	PlacedAt     time.Time
	UpdatedAt    time.Time
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ID             string
	OrderID        string
	MenuItemID     string
	NameSnapshot   string
	UnitPriceCents int64
	Quantity       int
}

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusPlaced は注文直後の状態。店舗の受理待ち。
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusAccepted は店舗が受理した状態。
	OrderStatusAccepted OrderStatus = "accepted"
	// OrderStatusPreparing は調理中。
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady は受け渡し可能。
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivering は配達中。
	OrderStatusDelivering OrderStatus = "delivering"
	// OrderStatusCompleted は完了。
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled はキャンセル済み。
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions は許可された状態遷移を定義する。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:     {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusDelivering, OrderStatusCompleted},
	OrderStatusDelivering: {OrderStatusCompleted},
}

// CanTransitionTo は現在の状態からnextへの遷移が許可されているかを判定する。
// completed/cancelledは終端状態であり、どこへも遷移できない。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal は終端状態かどうかを判定する。
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}
