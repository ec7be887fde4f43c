// Package model はドメインモデルを定義する。
package model

import "time"

// MenuItem は店舗のメニュー項目を表す。
// DescriptionHTMLはサニタイズ済みのHTML断片（保存前に必ずサニタイズされる）。
type MenuItem struct {
	ID              string
	RestaurantID    string
	Name            string
	DescriptionHTML string
	PriceCents      int64
	Currency        string
	Available       bool
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
