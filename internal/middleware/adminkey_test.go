package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminKeyMiddleware_ValidKey_PassesThrough(t *testing.T) {
	mw := NewAdminKeyMiddleware("secret-admin-key")

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/restaurants/r1/status", nil)
	req.Header.Set("X-Admin-Key", "secret-admin-key")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Fatal("handler should be called with valid admin key")
	}
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestAdminKeyMiddleware_WrongKey_Returns403(t *testing.T) {
	mw := NewAdminKeyMiddleware("secret-admin-key")

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/restaurants/r1/status", nil)
	req.Header.Set("X-Admin-Key", "wrong-key")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdminKeyMiddleware_MissingHeader_Returns403(t *testing.T) {
	mw := NewAdminKeyMiddleware("secret-admin-key")

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/restaurants/r1/status", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdminKeyMiddleware_UnconfiguredKey_FailsClosed(t *testing.T) {
	// キー未設定時は正しいヘッダーが来ても全て拒否する
	mw := NewAdminKeyMiddleware("")

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called when key is unconfigured")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/restaurants/r1/status", nil)
	req.Header.Set("X-Admin-Key", "")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
