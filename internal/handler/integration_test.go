package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
	"github.com/hitoshi/taskman/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// --- 統合テスト用の依存 ---

// capturingMailer は送信されたメール本文を保持する。
type capturingMailer struct {
	mu     sync.Mutex
	bodies []string
}

func (m *capturingMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *capturingMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		return ""
	}
	return m.bodies[len(m.bodies)-1]
}

type pingOK struct{}

func (pingOK) PingContext(context.Context) error { return nil }

type integrationEnv struct {
	server *httptest.Server
	tokens *auth.TokenService
	mailer *capturingMailer
	reg    *prometheus.Registry
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		SecretKey:  "integration-secret-key-32-bytes!!",
		Algorithm:  "HS256",
		DefaultTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)
	users := repository.NewMemoryUserRepo()
	mailer := &capturingMailer{}
	resolver := auth.NewResolver(tokens, users, mc)

	authService := auth.NewService(
		users, auth.NewBcryptHasher(bcrypt.MinCost), tokens, resolver, mailer, mc,
		auth.ServiceConfig{AppName: "TodoApp", ClientURL: "http://localhost:3000"},
	)
	taskService := task.NewService(repository.NewMemoryTaskRepo(), security.NewTextSanitizer())

	router := NewRouter(&RouterDeps{
		IdentityResolver:  resolver,
		CORSAllowedOrigin: "http://localhost:3000",
		Metrics:           mc,
		MetricsGatherer:   reg,
		AppName:           "TodoApp",
		HealthChecker:     pingOK{},
		AuthService:       authService,
		TaskService:       taskService,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &integrationEnv{server: srv, tokens: tokens, mailer: mailer, reg: reg}
}

func (e *integrationEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (e *integrationEnv) signupAndLogin(t *testing.T, email, username, password string) (string, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": email, "username": username, "password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, body = %s", resp.StatusCode, body)
	}
	var user signupResponse
	json.Unmarshal(body, &user)

	resp, body = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", resp.StatusCode, body)
	}
	var login loginResponse
	json.Unmarshal(body, &login)
	return user.ID, login.AccessToken
}

// TestIntegration_SignupLoginAndTasks はサインアップからタスク操作までの一連の流れを検証する。
func TestIntegration_SignupLoginAndTasks(t *testing.T) {
	env := newIntegrationEnv(t)

	userID, token := env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	resp, body := env.do(t, http.MethodGet, "/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /auth/me status = %d", resp.StatusCode)
	}
	var me meResponse
	json.Unmarshal(body, &me)
	if me.ID != userID || me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}

	resp, body = env.do(t, http.MethodPost, "/tasks", token, map[string]any{
		"title": "Write report", "category": "Work",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /tasks status = %d, body = %s", resp.StatusCode, body)
	}
	var created taskResponse
	json.Unmarshal(body, &created)
	if created.Category == nil || *created.Category != "work" {
		t.Errorf("category = %v, want normalized work", created.Category)
	}
	if created.UserID != userID {
		t.Errorf("user_id = %q, want %q", created.UserID, userID)
	}

	resp, body = env.do(t, http.MethodPut, "/tasks/"+created.ID, token, map[string]any{"is_completed": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /tasks/{id} status = %d, body = %s", resp.StatusCode, body)
	}
	var updated taskResponse
	json.Unmarshal(body, &updated)
	if !updated.IsCompleted || updated.Title != "Write report" {
		t.Errorf("updated = %+v", updated)
	}

	resp, body = env.do(t, http.MethodPut, "/tasks/"+created.ID, token, map[string]any{"category": nil})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT category null status = %d, body = %s", resp.StatusCode, body)
	}
	var cleared taskResponse
	json.Unmarshal(body, &cleared)
	if cleared.Category != nil || !cleared.IsCompleted || cleared.Title != "Write report" {
		t.Errorf("cleared = %+v, want category cleared and other fields kept", cleared)
	}

	resp, body = env.do(t, http.MethodGet, "/tasks?completed=true", token, nil)
	var list []taskResponse
	json.Unmarshal(body, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("GET /tasks?completed=true status = %d, len = %d", resp.StatusCode, len(list))
	}

	resp, _ = env.do(t, http.MethodPost, "/tasks", token, map[string]any{"title": "Bad", "category": "chores"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unlisted category status = %d, want 422", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/tasks/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/tasks/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET deleted task status = %d, want 404", resp.StatusCode)
	}
}

// TestIntegration_CrossUserAccessLooksLikeMissing は他人のタスクへのアクセスが
// 存在しないタスクと同じ応答になることを検証する。
func TestIntegration_CrossUserAccessLooksLikeMissing(t *testing.T) {
	env := newIntegrationEnv(t)

	_, aliceToken := env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")
	_, bobToken := env.signupAndLogin(t, "bob@example.com", "bob", "Passw0rd!")

	_, body := env.do(t, http.MethodPost, "/tasks", aliceToken, map[string]any{"title": "Private"})
	var aliceTask taskResponse
	json.Unmarshal(body, &aliceTask)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			var payload any
			if method == http.MethodPut {
				payload = map[string]any{"title": "Stolen"}
			}
			respOther, bodyOther := env.do(t, method, "/tasks/"+aliceTask.ID, bobToken, payload)
			respMissing, bodyMissing := env.do(t, method, "/tasks/00000000-0000-4000-8000-000000000000", bobToken, payload)

			if respOther.StatusCode != http.StatusNotFound || respMissing.StatusCode != http.StatusNotFound {
				t.Errorf("status other=%d missing=%d, want 404", respOther.StatusCode, respMissing.StatusCode)
			}
			if !bytes.Equal(bodyOther, bodyMissing) {
				t.Errorf("bodies differ:\nother:   %s\nmissing: %s", bodyOther, bodyMissing)
			}
		})
	}

	// aliceのタスクは変わっていない
	resp, body := env.do(t, http.MethodGet, "/tasks/"+aliceTask.ID, aliceToken, nil)
	var got taskResponse
	json.Unmarshal(body, &got)
	if resp.StatusCode != http.StatusOK || got.Title != "Private" {
		t.Errorf("alice task = %d %+v", resp.StatusCode, got)
	}
}

// TestIntegration_LoginFailuresAreIdentical は未登録ユーザーとパスワード誤りの応答が同一であることを検証する。
func TestIntegration_LoginFailuresAreIdentical(t *testing.T) {
	env := newIntegrationEnv(t)
	env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	respUnknown, bodyUnknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "Passw0rd!",
	})
	respWrong, bodyWrong := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Wr0ngPass!",
	})

	if respUnknown.StatusCode != http.StatusUnauthorized || respWrong.StatusCode != http.StatusUnauthorized {
		t.Errorf("status unknown=%d wrong=%d, want 401", respUnknown.StatusCode, respWrong.StatusCode)
	}
	if !bytes.Equal(bodyUnknown, bodyWrong) {
		t.Errorf("bodies differ:\nunknown: %s\nwrong:   %s", bodyUnknown, bodyWrong)
	}
}

// TestIntegration_ProtectedRoutesRequireToken は保護ルートがトークンなし・不正トークンで401を返すことを検証する。
func TestIntegration_ProtectedRoutesRequireToken(t *testing.T) {
	env := newIntegrationEnv(t)
	userID, _ := env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	expired, _ := env.tokens.Issue(userID, time.Nanosecond)
	time.Sleep(1100 * time.Millisecond)

	for name, token := range map[string]string{"none": "", "garbage": "abc.def.ghi", "expired": expired} {
		t.Run(name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, "/tasks", token, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
		})
	}
}

var resetLinkToken = regexp.MustCompile(`reset-password\?token=([^"]+)"`)

// TestIntegration_PasswordResetFlow はメール経由のパスワード再設定の流れを検証する。
func TestIntegration_PasswordResetFlow(t *testing.T) {
	env := newIntegrationEnv(t)
	env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	resp, _ := env.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("forgot-password unknown status = %d, want 404", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "alice@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot-password status = %d, body = %s", resp.StatusCode, body)
	}

	match := resetLinkToken.FindStringSubmatch(env.mailer.last())
	if match == nil {
		t.Fatalf("reset link not found in mail: %s", env.mailer.last())
	}
	token, _ := url.QueryUnescape(match[1])

	resp, _ = env.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "N3wPassword!", "confirm_password": "mismatch",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("mismatched confirm status = %d, want 422", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "N3wPassword!", "confirm_password": "N3wPassword!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset-password status = %d, body = %s", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Passw0rd!",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login with old password status = %d, want 401", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "N3wPassword!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login with new password status = %d, want 200", resp.StatusCode)
	}
}

// TestIntegration_DuplicateSignup は重複登録が409になることを検証する。
func TestIntegration_DuplicateSignup(t *testing.T) {
	env := newIntegrationEnv(t)
	env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	resp, _ := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "username": "alice2", "password": "Passw0rd!",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

// TestIntegration_OperationalEndpoints はホーム、ヘルスチェック、メトリクスを検証する。
func TestIntegration_OperationalEndpoints(t *testing.T) {
	env := newIntegrationEnv(t)
	env.signupAndLogin(t, "alice@example.com", "alice", "Passw0rd!")

	resp, body := env.do(t, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Welcome to TodoApp API") {
		t.Errorf("GET / = %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	resp, _ = env.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}
	for _, name := range []string{"taskman_signups_total", "taskman_logins_total", "taskman_http_status_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics should expose %s", name)
		}
	}
}

// TestIntegration_CORSPreflight はプリフライトでAuthorizationヘッダーが許可されることを検証する。
func TestIntegration_CORSPreflight(t *testing.T) {
	env := newIntegrationEnv(t)

	resp, _ := env.do(t, http.MethodOptions, "/tasks", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers = %q, want Authorization", got)
	}
}
