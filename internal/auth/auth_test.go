package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "absensi"
)

func TestIssueAndParse(t *testing.T) {
	u := User{ID: "u1", Username: "guru", Role: RoleGuru}
	sess, err := Issue(u, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	claims, err := Parse(sess.Token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "guru", claims.Username)
	assert.Equal(t, RoleGuru, claims.Role)
	assert.Equal(t, "u1", claims.Subject)

	_, err = Parse(sess.Token, "wrong-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(sess.Token, testKey, "someone-else")
	assert.Error(t, err)

	expired, err := Issue(u, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.Token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestServiceLogin(t *testing.T) {
	users := NewMemoryUsers()
	svc := NewService(users, testIssuer, testKey, 0)
	assert.Equal(t, 24*time.Hour, svc.TTL())
	ctx := context.Background()

	_, err := svc.Register(ctx, "  Admin ", "admin123", RoleAdmin)
	require.NoError(t, err)

	u, sess, err := svc.Login(ctx, "ADMIN", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.NotEmpty(t, sess.Token)

	_, _, err = svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestServiceRegister(t *testing.T) {
	svc := NewService(NewMemoryUsers(), testIssuer, testKey, time.Hour)
	ctx := context.Background()

	u, err := svc.Register(ctx, "bu_ani", "rahasia", "")
	require.NoError(t, err)
	assert.Equal(t, RoleGuru, u.Role)
	assert.NotEqual(t, "rahasia", u.PasswordHash)

	_, err = svc.Register(ctx, "BU_ANI", "lain", RoleGuru)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, "pak_budi", "x", "kepala")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = svc.Register(ctx, "pak_budi", "", RoleGuru)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff", RequireSession(testKey, testIssuer), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Username)
	})
	r.GET("/admin", RequireSession(testKey, testIssuer), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	guru, err := Issue(User{ID: "g", Username: "guru", Role: RoleGuru}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		setup  func(*http.Request)
		status int
	}{
		{"no session", "/staff", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad token", "/staff", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", "/staff", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+guru.Token) }, http.StatusOK},
		{"cookie", "/staff", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: guru.Token}) }, http.StatusOK},
		{"wrong role", "/admin", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: guru.Token}) }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
