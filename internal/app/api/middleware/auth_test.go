package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/prepstack/billing/pkg/config"
)

const jwtSecret = "test_jwt_secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func authCfg() *cfgpkg.AuthConfig {
	return &cfgpkg.AuthConfig{JWTSecret: jwtSecret, RevokedTokenIDs: []string{"revoked_jti"}}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":   "user_1",
		"email": "u1@example.com",
		"name":  "U One",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	res := Authenticate("Bearer "+token, authCfg())
	require.True(t, res.OK())
	require.Equal(t, "user_1", res.Identity.UID)
	require.Equal(t, "u1@example.com", res.Identity.Email)
	require.Equal(t, "U One", res.Identity.Name)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	res := Authenticate("", authCfg())
	require.Equal(t, AuthKindMissingHeader, res.Kind)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	require.Equal(t, AuthKindMalformed, Authenticate("Token abc", authCfg()).Kind)
	require.Equal(t, AuthKindMalformed, Authenticate("Bearer ", authCfg()).Kind)
	require.Equal(t, AuthKindMalformed, Authenticate("Bearer not.a.jwt", authCfg()).Kind)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user_1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other_secret"))
	require.NoError(t, err)

	require.Equal(t, AuthKindMalformed, Authenticate("Bearer "+s, authCfg()).Kind)
}

func TestAuthenticate_Expired(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "user_1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.Equal(t, AuthKindExpired, Authenticate("Bearer "+token, authCfg()).Kind)
}

func TestAuthenticate_Revoked(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "user_1",
		"jti": "revoked_jti",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, AuthKindRevoked, Authenticate("Bearer "+token, authCfg()).Kind)
}

func TestAuthenticate_MissingSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.Equal(t, AuthKindMalformed, Authenticate("Bearer "+token, authCfg()).Kind)
}

func TestAuthMiddleware_RejectsAndAdmits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &cfgpkg.Config{Auth: *authCfg()}

	r := gin.New()
	r.Use(AuthMiddleware(cfg, zap.NewNop().Sugar()))
	r.GET("/me", func(c *gin.Context) {
		user, ok := UserFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, user.UID)
	})

	// No token.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	token := signToken(t, jwt.MapClaims{"sub": "user_1", "exp": time.Now().Add(time.Hour).Unix()})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user_1", w.Body.String())
}
