package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// recordingStatusRecorder はHTTPStatusRecorderのモック実装。
type recordingStatusRecorder struct {
	statuses []int
}

func (r *recordingStatusRecorder) RecordHTTPStatus(statusCode int) {
	r.statuses = append(r.statuses, statusCode)
}

func TestHTTPMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			name: "明示的なWriteHeader",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			want: http.StatusNotFound,
		},
		{
			name: "WriteHeaderなしのWriteは200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			want: http.StatusOK,
		},
		{
			name: "サーバーエラー",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &recordingStatusRecorder{}
			mw := NewHTTPMetricsMiddleware(recorder)

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			w := httptest.NewRecorder()
			mw(tt.handler).ServeHTTP(w, req)

			if len(recorder.statuses) != 1 {
				t.Fatalf("recorded %d statuses, want 1", len(recorder.statuses))
			}
			if recorder.statuses[0] != tt.want {
				t.Errorf("recorded status = %d, want %d", recorder.statuses[0], tt.want)
			}
		})
	}
}

func TestHTTPMetricsMiddleware_NilRecorder_PassesThrough(t *testing.T) {
	mw := NewHTTPMetricsMiddleware(nil)

	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mw(handler).ServeHTTP(w, req)

	if !called {
		t.Error("next handler should be called")
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
}
