// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dishpatch/internal/middleware"
	"github.com/hitoshi/dishpatch/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// apiErrorStatusCodes はエラーコードとHTTPステータスコードの対応。
// 未知のコードはカテゴリに基づいてフォールバックする。
var apiErrorStatusCodes = map[string]int{
	model.ErrCodeInvalidCredentials:     http.StatusUnauthorized,
	model.ErrCodeEmailTaken:             http.StatusConflict,
	model.ErrCodeWeakPassword:           http.StatusBadRequest,
	model.ErrCodeUserNotFound:           http.StatusNotFound,
	model.ErrCodeTokenInvalid:           http.StatusUnauthorized,
	model.ErrCodeRestaurantNotFound:     http.StatusNotFound,
	model.ErrCodeRestaurantClosed:       http.StatusConflict,
	model.ErrCodeMembershipNotFound:     http.StatusForbidden,
	model.ErrCodeDuplicateMembership:    http.StatusConflict,
	model.ErrCodeMenuItemNotFound:       http.StatusNotFound,
	model.ErrCodeOrderNotFound:          http.StatusNotFound,
	model.ErrCodeEmptyOrder:             http.StatusBadRequest,
	model.ErrCodeInvalidOrderTransition: http.StatusConflict,
	model.ErrCodeInvalidURL:             http.StatusBadRequest,
	model.ErrCodeSSRFBlocked:            http.StatusBadRequest,
	model.ErrCodeFetchFailed:            http.StatusBadGateway,
	model.ErrCodeLogoNotDetected:        http.StatusUnprocessableEntity,
}

// writeError はエラーを統一フォーマットで書き込む。
// APIErrorは対応するステータスコードで、それ以外は詳細を隠した500で返す。
func writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode, ok := apiErrorStatusCodes[apiErr.Code]
		if !ok {
			statusCode = statusForCategory(apiErr.Category)
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	slog.Error("request failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// statusForCategory はカテゴリからフォールバックのステータスコードを決める。
func statusForCategory(category string) int {
	switch category {
	case "auth":
		return http.StatusUnauthorized
	case "validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
