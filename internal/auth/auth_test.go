package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-of-some-length"

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	token, expires, err := m.Issue(7, "officer1", "field_officer")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "officer1", claims.Username)
	assert.Equal(t, "field_officer", claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue(1, "admin", "admin")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, _, _ := NewTokenManager("secret-number-one", time.Hour).Issue(1, "admin", "admin")

	_, err := NewTokenManager("secret-number-two", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestTokenManager_InvalidSigningMethod(t *testing.T) {
	claims := &Claims{
		UserID: 1,
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).Parse(tokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

func TestTokenManager_Garbage(t *testing.T) {
	_, err := NewTokenManager(testSecret, time.Hour).Parse("invalid.token.string")
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong horse", hash))
	assert.False(t, CheckPassword("correct horse", "not-a-hash"))
}

func TestParseSeed(t *testing.T) {
	data := []byte(`
users:
  - username: admin
    password: change-me-now
    full_name: District Admin
    role: admin
  - username: officer1
    password: another-secret
    role: field_officer
    secretariats: [Rampur, Kothapalli]
  - username: nopassword
    role: admin
`)
	users, err := ParseSeed(data)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "District Admin", users[0].FullName)
	assert.Equal(t, []string{"Rampur", "Kothapalli"}, users[1].Secretariats)
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := ParseSeed([]byte("users: [unclosed"))
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - username: a\n    password: b-long-enough\n    role: admin\n"), 0o600))

	users, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSessionMiddleware(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	token, _, err := m.Issue(3, "sec1", "panchayat_secretary")
	require.NoError(t, err)

	var got *Claims
	handler := m.Session("rr_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		wantID int64
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "rr_session", Value: token}) }, 3},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, 3},
		{"none", func(r *http.Request) {}, 0},
		{"invalid", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "rr_session", Value: "junk"}) }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.UserID)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	opts := CookieOptions{Name: "rr_session", Secure: true}

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, opts, "tok", time.Now().Add(time.Hour))
	c := rec.Result().Cookies()[0]
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, opts)
	c = rec.Result().Cookies()[0]
	assert.Equal(t, "", c.Value)
	assert.True(t, c.MaxAge < 0)
}
