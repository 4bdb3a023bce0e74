package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.User, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, model.NewUnauthorizedError()
}

// TestBearerAuthMiddleware_ValidToken は有効なトークンでユーザーがコンテキストに注入されることを検証する。
func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	resolver := &mockResolver{resolveFn: func(ctx context.Context, token string) (*model.User, error) {
		if token != "good-token" {
			t.Errorf("token = %q, want %q", token, "good-token")
		}
		return &model.User{ID: "user-1", Username: "alice", IsActive: true}, nil
	}}

	var captured *model.User
	handler := NewBearerAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.ID != "user-1" {
		t.Errorf("user in context = %+v, want user-1", captured)
	}
}

// TestBearerAuthMiddleware_SchemeCaseInsensitive はスキーム名の大文字小文字を区別しないことを検証する。
func TestBearerAuthMiddleware_SchemeCaseInsensitive(t *testing.T) {
	for _, header := range []string{"bearer tok", "BEARER tok", "Bearer   tok"} {
		t.Run(header, func(t *testing.T) {
			resolver := &mockResolver{resolveFn: func(ctx context.Context, token string) (*model.User, error) {
				return &model.User{ID: "u"}, nil
			}}
			handler := NewBearerAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

// TestBearerAuthMiddleware_MissingOrMalformedHeader はヘッダー不備で401が返ることを検証する。
func TestBearerAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"スキームのみ", "Bearer"},
		{"トークンが空白", "Bearer    "},
		{"Basic認証", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			handler := NewBearerAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
			if resolver.calls != 0 {
				t.Error("resolver should not be called without a token")
			}
		})
	}
}

// TestBearerAuthMiddleware_RejectedToken はリゾルバーの認証エラーがそのまま401になることを検証する。
func TestBearerAuthMiddleware_RejectedToken(t *testing.T) {
	resolver := &mockResolver{}
	handler := NewBearerAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

// TestBearerAuthMiddleware_StoreError はストア障害が500になることを検証する。
func TestBearerAuthMiddleware_StoreError(t *testing.T) {
	resolver := &mockResolver{resolveFn: func(ctx context.Context, token string) (*model.User, error) {
		return nil, errors.New("db down")
	}}
	handler := NewBearerAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// TestUserIDFromContext_Empty はユーザー未注入のコンテキストでエラーを返すことを検証する。
func TestUserIDFromContext_Empty(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}

	ctx := ContextWithUser(context.Background(), &model.User{ID: "user-9"})
	if id, err := UserIDFromContext(ctx); err != nil || id != "user-9" {
		t.Errorf("UserIDFromContext() = %q, %v", id, err)
	}
}

// TestUserIDFromContext_IgnoresRequestState はロギング用のリクエスト状態だけでは
// ユーザーIDとみなさないことを検証する。
func TestUserIDFromContext_IgnoresRequestState(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestStateContextKey, &requestState{userID: "user-9"})
	if id, err := UserIDFromContext(ctx); err == nil {
		t.Errorf("UserIDFromContext() = %q, want error without an authenticated user", id)
	}
}
