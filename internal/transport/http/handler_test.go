package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nfavre/gatehouse/internal/attempt"
	"github.com/nfavre/gatehouse/internal/domain/auth"
	"github.com/nfavre/gatehouse/internal/domain/user"
	"github.com/nfavre/gatehouse/internal/password"
	"github.com/nfavre/gatehouse/internal/refresh"
	"github.com/nfavre/gatehouse/internal/session"
	"github.com/nfavre/gatehouse/internal/token"
	"github.com/nfavre/gatehouse/internal/verify"
)

type memUsers struct {
	mu   sync.Mutex
	seq  int64
	byID map[int64]*user.User
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == u.Username || x.Email == u.Email {
			return user.ErrConflict
		}
	}
	m.seq++
	u.ID = m.seq
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(pred func(*user.User) bool) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if pred(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return m.find(func(u *user.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return m.find(func(u *user.User) bool { return u.Email == email })
}

func (m *memUsers) GetByVerificationToken(_ context.Context, tok string) (*user.User, error) {
	return m.find(func(u *user.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == tok
	})
}

func (m *memUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) Update(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return user.ErrNotFound
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

type memRefreshRepo struct {
	mu      sync.Mutex
	seq     int64
	byToken map[string]*auth.RefreshToken
}

func (m *memRefreshRepo) Create(_ context.Context, t *auth.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = m.seq
	cp := *t
	m.byToken[t.Token] = &cp
	return nil
}

func (m *memRefreshRepo) FindByToken(_ context.Context, tok string) (*auth.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byToken[tok]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRefreshRepo) DeleteByToken(_ context.Context, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byToken, tok)
	return nil
}

func (m *memRefreshRepo) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.byToken {
		if t.UserID == userID {
			delete(m.byToken, k)
		}
	}
	return nil
}

func (m *memRefreshRepo) Revoke(_ context.Context, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byToken[tok]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *memRefreshRepo) RevokeByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byToken {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *memRefreshRepo) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type mailSpy struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailSpy) SendVerificationLink(_ context.Context, to, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[to] = tok
	return nil
}

func (m *mailSpy) SendPasswordChangedNotice(_ context.Context, _, _ string) error { return nil }

func (m *mailSpy) tokenFor(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[to]
}

func newTestServer(t *testing.T) (*httptest.Server, *mailSpy) {
	t.Helper()
	users := &memUsers{byID: make(map[int64]*user.User)}
	mail := &mailSpy{tokens: make(map[string]string)}
	codec := token.NewCodec(token.Config{
		Secret:      []byte("test-secret"),
		AccessTTL:   15 * time.Minute,
		ExtendedTTL: 7 * 24 * time.Hour,
	})
	store := refresh.NewStore(&memRefreshRepo{byToken: make(map[string]*auth.RefreshToken)}, refresh.Config{
		TTL:         7 * 24 * time.Hour,
		ExtendedTTL: 30 * 24 * time.Hour,
	})
	orch := session.NewOrchestrator(session.Deps{
		Users:    users,
		Codec:    codec,
		Refresh:  store,
		Attempts: attempt.NewTracker(attempt.Config{}),
		Verifier: verify.NewIssuer(users, verify.Config{}),
		Hasher:   password.NewBcryptHasher(bcrypt.MinCost),
		Mail:     mail,
	}, session.Config{})

	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, orch, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, mail
}

func postJSON(t *testing.T, ts *httptest.Server, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func getJSON(t *testing.T, ts *httptest.Server, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func registerAndVerify(t *testing.T, ts *httptest.Server, mail *mailSpy, username, email, pass string) map[string]any {
	t.Helper()
	resp, body := postJSON(t, ts, "/v1/auth/register", "", map[string]any{
		"username": username, "email": email, "password": pass,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = getJSON(t, ts, "/v1/auth/verify/"+mail.tokenFor(email), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body
}

func TestRegisterLoginFlow(t *testing.T) {
	ts, mail := newTestServer(t)

	resp, body := postJSON(t, ts, "/v1/auth/register", "", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])

	// Unverified accounts can hold tokens but cannot log in again.
	resp, _ = postJSON(t, ts, "/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "correct-horse",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = getJSON(t, ts, "/v1/auth/verify/"+mail.tokenFor("alice@example.com"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = postJSON(t, ts, "/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["username"])
}

func TestRegisterConflictAndBadJSON(t *testing.T) {
	ts, mail := newTestServer(t)
	registerAndVerify(t, ts, mail, "alice", "alice@example.com", "correct-horse")

	resp, _ := postJSON(t, ts, "/v1/auth/register", "", map[string]any{
		"username": "alice", "email": "fresh@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/auth/register", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestLoginLockoutStatus(t *testing.T) {
	ts, mail := newTestServer(t)
	registerAndVerify(t, ts, mail, "bob", "bob@example.com", "correct-horse")

	for i := 0; i < 5; i++ {
		resp, _ := postJSON(t, ts, "/v1/auth/login", "", map[string]any{
			"username": "bob", "password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := postJSON(t, ts, "/v1/auth/login", "", map[string]any{
		"username": "bob", "password": "correct-horse",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRefreshAndLogout(t *testing.T) {
	ts, mail := newTestServer(t)
	pair := registerAndVerify(t, ts, mail, "alice", "alice@example.com", "correct-horse")
	rt := pair["refresh_token"].(string)

	resp, body := postJSON(t, ts, "/v1/auth/refresh", "", map[string]any{"refresh_token": rt})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, rt, body["refresh_token"])
	require.NotEmpty(t, body["access_token"])

	resp, _ = postJSON(t, ts, "/v1/auth/logout", "", map[string]any{"refresh_token": rt})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = postJSON(t, ts, "/v1/auth/refresh", "", map[string]any{"refresh_token": rt})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts, "/v1/auth/refresh", "", map[string]any{"refresh_token": "garbage"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyUnknownToken(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := getJSON(t, ts, "/v1/auth/verify/no-such-token", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMeRequiresAuth(t *testing.T) {
	ts, mail := newTestServer(t)
	pair := registerAndVerify(t, ts, mail, "alice", "alice@example.com", "correct-horse")

	resp, _ := getJSON(t, ts, "/v1/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = getJSON(t, ts, "/v1/auth/me", "garbage")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := getJSON(t, ts, "/v1/auth/me", pair["access_token"].(string))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["username"])
	require.Equal(t, true, body["enabled"])
}

func TestChangePasswordEndpoint(t *testing.T) {
	ts, mail := newTestServer(t)
	pair := registerAndVerify(t, ts, mail, "alice", "alice@example.com", "correct-horse")
	access := pair["access_token"].(string)

	resp, _ := postJSON(t, ts, "/v1/auth/change-password", access, map[string]any{
		"old_password": "wrong", "new_password": "battery-staple",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, ts, "/v1/auth/change-password", access, map[string]any{
		"old_password": "correct-horse", "new_password": "battery-staple",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Old refresh token is dead after the change.
	resp, _ = postJSON(t, ts, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": pair["refresh_token"],
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts, "/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "battery-staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResendVerificationEndpoint(t *testing.T) {
	ts, mail := newTestServer(t)

	resp, _ := postJSON(t, ts, "/v1/auth/resend-verification", "", map[string]any{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	postJSON(t, ts, "/v1/auth/register", "", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "correct-horse",
	})
	first := mail.tokenFor("alice@example.com")

	resp, _ = postJSON(t, ts, "/v1/auth/resend-verification", "", map[string]any{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	second := mail.tokenFor("alice@example.com")
	require.NotEqual(t, first, second)

	resp, _ = getJSON(t, ts, fmt.Sprintf("/v1/auth/verify/%s", second), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts, "/v1/auth/resend-verification", "", map[string]any{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}
