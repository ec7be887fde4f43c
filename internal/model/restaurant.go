// Package model はドメインモデルを定義する。
package model

import "time"

// Restaurant は掲載店舗を表す。
type Restaurant struct {
	ID          string
	Name        string
	Description string
	Address     string
	SiteURL     string
	LogoData    []byte
	LogoMime    string
	Status      RestaurantStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RestaurantStatus は店舗の掲載状態を表す。
type RestaurantStatus string

const (
	// RestaurantStatusActive は営業中（注文受付可能）。
	RestaurantStatusActive RestaurantStatus = "active"
	// RestaurantStatusSuspended は掲載停止中。
	RestaurantStatusSuspended RestaurantStatus = "suspended"
	// RestaurantStatusClosed は閉店。
	RestaurantStatusClosed RestaurantStatus = "closed"
)

// Membership はユーザーと店舗の所属関係を表す。
type Membership struct {
	ID           string
	UserID       string
	RestaurantID string
	Role         MembershipRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
