// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, restaurant, order, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken             = "EMAIL_TAKEN"
	ErrCodeWeakPassword           = "WEAK_PASSWORD"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeTokenInvalid           = "TOKEN_INVALID"
	ErrCodeRestaurantNotFound     = "RESTAURANT_NOT_FOUND"
	ErrCodeRestaurantClosed       = "RESTAURANT_CLOSED"
	ErrCodeMembershipNotFound     = "MEMBERSHIP_NOT_FOUND"
	ErrCodeDuplicateMembership    = "DUPLICATE_MEMBERSHIP"
	ErrCodeMenuItemNotFound       = "MENU_ITEM_NOT_FOUND"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeEmptyOrder             = "EMPTY_ORDER"
	ErrCodeInvalidOrderTransition = "INVALID_ORDER_TRANSITION"
	ErrCodeInvalidURL             = "INVALID_URL"
	ErrCodeSSRFBlocked            = "SSRF_BLOCKED"
	ErrCodeFetchFailed            = "FETCH_FAILED"
	ErrCodeLogoNotDetected        = "LOGO_NOT_DETECTED"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレスの存在有無を区別しない単一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードが短すぎます。",
		Category: "validation",
		Action:   "8文字以上のパスワードを設定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewTokenInvalidError はトークンが無効・期限切れ・使用済みの場合のエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "手続きを最初からやり直してください。",
	}
}

// NewRestaurantNotFoundError は店舗未検出エラーを生成する。
func NewRestaurantNotFoundError(restaurantID string) *APIError {
	return &APIError{
		Code:     ErrCodeRestaurantNotFound,
		Message:  fmt.Sprintf("指定された店舗が見つかりません: %s", restaurantID),
		Category: "restaurant",
		Action:   "店舗IDを確認してください。",
	}
}

// NewRestaurantClosedError は営業中でない店舗への注文エラーを生成する。
func NewRestaurantClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeRestaurantClosed,
		Message:  "この店舗は現在注文を受け付けていません。",
		Category: "restaurant",
		Action:   "営業中の店舗を選択してください。",
	}
}

// NewMembershipNotFoundError は店舗所属が見つからない場合のエラーを生成する。
func NewMembershipNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMembershipNotFound,
		Message:  "この店舗の操作権限がありません。",
		Category: "auth",
		Action:   "店舗の管理者に権限の付与を依頼してください。",
	}
}

// NewDuplicateMembershipError は既に所属済みのユーザーを再度追加しようとした場合のエラーを生成する。
func NewDuplicateMembershipError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateMembership,
		Message:  "このユーザーは既に店舗のメンバーです。",
		Category: "validation",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewMenuItemNotFoundError はメニュー項目未検出エラーを生成する。
func NewMenuItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeMenuItemNotFound,
		Message:  fmt.Sprintf("指定されたメニュー項目が見つかりません: %s", itemID),
		Category: "restaurant",
		Action:   "メニュー項目IDを確認してください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewEmptyOrderError は明細のない注文エラーを生成する。
func NewEmptyOrderError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyOrder,
		Message:  "注文にはメニュー項目を1つ以上含めてください。",
		Category: "validation",
		Action:   "カートにメニュー項目を追加してから注文してください。",
	}
}

// NewInvalidOrderTransitionError は許可されない注文状態遷移エラーを生成する。
func NewInvalidOrderTransitionError(from, to OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrderTransition,
		Message:  fmt.Sprintf("注文状態を %s から %s に変更することはできません。", from, to),
		Category: "order",
		Action:   "現在の注文状態を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は外部サイト取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "restaurant",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewLogoNotDetectedError は店舗サイトからロゴを検出できなかった場合のエラーを生成する。
func NewLogoNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeLogoNotDetected,
		Message:  fmt.Sprintf("指定されたURLからロゴ画像を検出できませんでした: %s", url),
		Category: "restaurant",
		Action:   "サイトのトップページURLを確認するか、ロゴ画像を直接アップロードしてください。",
	}
}
