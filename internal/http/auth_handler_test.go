package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"sketchlab/internal/domain"
	"sketchlab/internal/oauth"
	"sketchlab/internal/repository"
	"sketchlab/internal/service"
)

type mockAccountRepo struct {
	byID map[string]domain.Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{byID: make(map[string]domain.Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, account domain.Account) error {
	for _, a := range m.byID {
		if a.Email == account.Email && account.Email != "" {
			return repository.ErrDuplicateEmail
		}
		for _, l := range a.Providers {
			for _, nl := range account.Providers {
				if l.Provider == nl.Provider && l.ProviderID == nl.ProviderID {
					return repository.ErrDuplicateLink
				}
			}
		}
	}
	m.byID[account.ID] = account
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (domain.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Account{}, pgx.ErrNoRows
}

func (m *mockAccountRepo) GetByProvider(_ context.Context, provider, providerID string) (domain.Account, error) {
	for _, a := range m.byID {
		for _, l := range a.Providers {
			if l.Provider == provider && l.ProviderID == providerID {
				return a, nil
			}
		}
	}
	return domain.Account{}, pgx.ErrNoRows
}

func (m *mockAccountRepo) AddProviderLink(_ context.Context, accountID string, link domain.ProviderLink) error {
	account, ok := m.byID[accountID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, l := range account.Providers {
		if l.Provider == link.Provider {
			return repository.ErrDuplicateLink
		}
	}
	account.Providers = append(account.Providers, link)
	m.byID[accountID] = account
	return nil
}

func (m *mockAccountRepo) RefreshProviderToken(_ context.Context, accountID, provider, accessToken string) error {
	account, ok := m.byID[accountID]
	if !ok {
		return pgx.ErrNoRows
	}
	for i := range account.Providers {
		if account.Providers[i].Provider == provider {
			account.Providers[i].AccessToken = accessToken
			m.byID[accountID] = account
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockAccountRepo) UpdateProfile(_ context.Context, id string, fullName, email, avatarURL string, verified bool) error {
	account, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.FullName = fullName
	account.Email = email
	account.ProfilePicture = avatarURL
	account.IsVerified = verified
	m.byID[id] = account
	return nil
}

func (m *mockAccountRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	account, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.LastLoginAt = &at
	m.byID[id] = account
	return nil
}

func (m *mockAccountRepo) SetResetCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	account, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.ResetCodeHash = codeHash
	account.ResetExpiresAt = &expiresAt
	m.byID[id] = account
	return nil
}

func (m *mockAccountRepo) ResetPassword(_ context.Context, id, passwordHash string) error {
	account, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.PasswordHash = passwordHash
	account.ResetCodeHash = ""
	account.ResetExpiresAt = nil
	m.byID[id] = account
	return nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendPasswordResetCode(_ context.Context, toEmail string, code string, _ time.Time) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

type testEnv struct {
	router    *gin.Engine
	repo      *mockAccountRepo
	sender    *mockEmailSender
	tokenSvc  *service.TokenService
	providers map[string]*fakeProvider
}

func setupEnv(limiters RouteLimiters) *testEnv {
	gin.SetMode(gin.TestMode)
	repo := newMockAccountRepo()
	sender := &mockEmailSender{}
	logger := zap.NewNop()
	accountSvc := service.NewAccountService(logger, repo, sender)
	tokenSvc := service.NewTokenService("test-secret", time.Hour, 10*time.Minute)

	fakes := map[string]*fakeProvider{
		domain.ProviderGoogle: {name: domain.ProviderGoogle},
		domain.ProviderGithub: {name: domain.ProviderGithub},
	}
	providers := map[string]oauth.Provider{}
	for name, p := range fakes {
		providers[name] = p
	}

	authH := NewAuthHandler(logger, accountSvc, tokenSvc, limiters.Login)
	oauthH := NewOAuthHandler(logger, providers, accountSvc, tokenSvc, "http://frontend.test")
	router := NewRouter(logger, authH, oauthH, tokenSvc, limiters, nil)
	return &testEnv{router: router, repo: repo, sender: sender, tokenSvc: tokenSvc, providers: fakes}
}

func performJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func performAuthed(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createAccount(t *testing.T, env *testEnv, email, password string) {
	t.Helper()
	rec := performJSON(env.router, http.MethodPost, "/auth/create", map[string]string{
		"fullName": "Test User",
		"email":    email,
		"phone":    "555-0100",
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndLoginIssuesSessionToken(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	rec := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "pw123456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Email    string `json:"email"`
			FullName string `json:"fullName"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Email != "a@x.com" || resp.User.FullName != "Test User" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}

	claims, err := env.tokenSvc.Verify(resp.Token, service.PurposeSession)
	if err != nil {
		t.Fatalf("expected valid session token, got %v", err)
	}
	stored, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if claims.Subject != stored.ID {
		t.Fatalf("expected token subject %s, got %s", stored.ID, claims.Subject)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	rec := performJSON(env.router, http.MethodPost, "/auth/create", map[string]string{
		"fullName": "Other",
		"email":    "A@X.COM",
		"phone":    "555-0101",
		"password": "pw654321",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginGenericInvalidCredentials(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	unknown := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "b@x.com",
		"password": "pw123456",
	})
	wrongPass := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong-pass",
	})
	if unknown.Code != http.StatusBadRequest || wrongPass.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", unknown.Code, wrongPass.Code)
	}
	// Usuario inexistente y password incorrecto no se distinguen.
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Fatalf("expected identical bodies, got %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
}

func TestForgotPasswordEnumerationResistance(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	existing := performJSON(env.router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "a@x.com"})
	missing := performJSON(env.router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@x.com"})

	if existing.Code != http.StatusOK || missing.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", existing.Code, missing.Code)
	}
	if !bytes.Equal(existing.Body.Bytes(), missing.Body.Bytes()) {
		t.Fatalf("expected byte-identical bodies, got %q vs %q", existing.Body.String(), missing.Body.String())
	}
	if env.sender.lastTo != "a@x.com" {
		t.Fatalf("expected code sent only for existing account")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "oldpass1")

	rec := performJSON(env.router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "a@x.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot-password: expected 200, got %d", rec.Code)
	}
	if env.sender.lastCode == "" {
		t.Fatalf("expected reset code dispatched")
	}

	wrong := performJSON(env.router, http.MethodPost, "/auth/verify-reset-code", map[string]string{
		"email": "a@x.com", "code": "000000",
	})
	if wrong.Code != http.StatusBadRequest {
		t.Fatalf("wrong code: expected 400, got %d", wrong.Code)
	}

	verify := performJSON(env.router, http.MethodPost, "/auth/verify-reset-code", map[string]string{
		"email": "a@x.com", "code": env.sender.lastCode,
	})
	if verify.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", verify.Code, verify.Body.String())
	}
	var verifyResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(verify.Body.Bytes(), &verifyResp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}

	reset := performJSON(env.router, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": verifyResp.Token, "newPassword": "newpass1",
	})
	if reset.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", reset.Code, reset.Body.String())
	}

	oldLogin := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "oldpass1",
	})
	if oldLogin.Code != http.StatusBadRequest {
		t.Fatalf("old password: expected 400, got %d", oldLogin.Code)
	}
	newLogin := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "newpass1",
	})
	if newLogin.Code != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", newLogin.Code)
	}
}

func TestResetPasswordRejectsSessionToken(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	login := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw123456",
	})
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	rec := performJSON(env.router, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": resp.Token, "newPassword": "newpass1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("session token on reset endpoint: expected 400, got %d", rec.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	if rec := performAuthed(env.router, http.MethodGet, "/auth/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	stored, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	token, err := env.tokenSvc.IssueSession(stored)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec := performAuthed(env.router, http.MethodGet, "/auth/me", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meResp struct {
		User struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if meResp.User.Email != "a@x.com" || meResp.User.FullName != "Test User" {
		t.Fatalf("unexpected me payload: %+v", meResp.User)
	}

	ghost, err := env.tokenSvc.IssueSession(domain.Account{ID: "no-such-id"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if rec := performAuthed(env.router, http.MethodGet, "/auth/me", ghost); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown subject: expected 404, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := setupEnv(RouteLimiters{Login: service.NewMemoryRateLimiter(time.Minute, 1)})
	createAccount(t, env, "a@x.com", "pw123456")

	first := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "wrong-pass",
	})
	if first.Code != http.StatusBadRequest {
		t.Fatalf("first failed attempt: expected 400, got %d", first.Code)
	}
	second := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw123456",
	})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: expected 429, got %d", second.Code)
	}
}

func TestLoginRateLimitSkipsSuccessfulAttempts(t *testing.T) {
	env := setupEnv(RouteLimiters{Login: service.NewMemoryRateLimiter(time.Minute, 1)})
	createAccount(t, env, "a@x.com", "pw123456")

	for i := 0; i < 3; i++ {
		rec := performJSON(env.router, http.MethodPost, "/auth/login", map[string]string{
			"email": "a@x.com", "password": "pw123456",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("successful login %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	env := setupEnv(RouteLimiters{})

	rec := performAuthed(env.router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProfileEndpoint(t *testing.T) {
	env := setupEnv(RouteLimiters{})
	createAccount(t, env, "a@x.com", "pw123456")

	stored, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	token, err := env.tokenSvc.IssueSession(stored)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec := performAuthed(env.router, http.MethodGet, "/users/profile", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("profile must not expose password data: %s", body)
	}
}
