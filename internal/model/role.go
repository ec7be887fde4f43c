// Package model はドメインモデルを定義する。
package model

// Role はプラットフォーム全体でのユーザーの役割を表す。
// 役割は全順序を持ち、上位の役割は下位の役割の権限をすべて含む。
type Role string

const (
	// RoleCustomer は注文を行う一般ユーザー。
	RoleCustomer Role = "customer"
	// RoleCourier は配達員。
	RoleCourier Role = "courier"
	// RoleRestaurantStaff は店舗スタッフ。
	RoleRestaurantStaff Role = "restaurant_staff"
	// RoleRestaurantAdmin は店舗管理者。
	RoleRestaurantAdmin Role = "restaurant_admin"
	// RolePlatformAdmin はプラットフォーム運営者。
	RolePlatformAdmin Role = "platform_admin"
)

// roleLevels は役割の序列を定義する。数値が大きいほど権限が強い。
var roleLevels = map[Role]int{
	RoleCustomer:        1,
	RoleCourier:         2,
	RoleRestaurantStaff: 3,
	RoleRestaurantAdmin: 4,
	RolePlatformAdmin:   5,
}

// Level は役割の序列値を返す。未知の役割は0（どの役割よりも弱い）を返す。
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast は自身がrequired以上の権限を持つかを判定する。
// 未知の役割はLevel 0となり、いかなる要求も満たさない。
func (r Role) AtLeast(required Role) bool {
	return r.Level() >= required.Level() && r.Level() > 0
}

// Valid は定義済みの役割かどうかを判定する。
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// ParseRole は文字列を役割に変換する。
// 未知の文字列の場合はfalseを返す（呼び出し側でフェイルクローズ処理を行う）。
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// MembershipRole は店舗内でのメンバーの役割を表す。
// プラットフォーム全体のRoleとは独立した、店舗スコープの序列。
type MembershipRole string

const (
	// MembershipStaff は店舗の一般スタッフ。
	MembershipStaff MembershipRole = "staff"
	// MembershipManager は店舗のマネージャー。
	MembershipManager MembershipRole = "manager"
	// MembershipOwner は店舗のオーナー。
	MembershipOwner MembershipRole = "owner"
)

var membershipLevels = map[MembershipRole]int{
	MembershipStaff:   1,
	MembershipManager: 2,
	MembershipOwner:   3,
}

// AtLeast は店舗内役割がrequired以上かを判定する。
func (m MembershipRole) AtLeast(required MembershipRole) bool {
	level := membershipLevels[m]
	return level >= membershipLevels[required] && level > 0
}

// Valid は定義済みの店舗内役割かどうかを判定する。
func (m MembershipRole) Valid() bool {
	_, ok := membershipLevels[m]
	return ok
}
