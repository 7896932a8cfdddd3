package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/samber/lo"
	"go.uber.org/zap"

	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/response"
	"github.com/prepstack/billing/pkg/types"
)

// AuthKind discriminates the outcomes of bearer-token authentication so
// callers can branch without runtime type inspection.
type AuthKind int

const (
	AuthKindOK AuthKind = iota
	AuthKindMissingHeader
	AuthKindMalformed
	AuthKindExpired
	AuthKindRevoked
)

func (k AuthKind) String() string {
	switch k {
	case AuthKindOK:
		return "ok"
	case AuthKindMissingHeader:
		return "missing_header"
	case AuthKindMalformed:
		return "malformed"
	case AuthKindExpired:
		return "expired"
	case AuthKindRevoked:
		return "revoked"
	}
	return "unknown"
}

// AuthResult is a tagged union: Kind==AuthKindOK carries a valid Identity,
// any other kind describes why authentication failed.
type AuthResult struct {
	Kind     AuthKind
	Identity types.UserIdentity
}

func (r AuthResult) OK() bool { return r.Kind == AuthKindOK }

// Authenticate resolves an Authorization header value into an AuthResult.
// Pure function of its inputs, exported for direct testing.
func Authenticate(authorization string, auth *cfgpkg.AuthConfig) AuthResult {
	if authorization == "" {
		return AuthResult{Kind: AuthKindMissingHeader}
	}
	raw, found := strings.CutPrefix(authorization, "Bearer ")
	if !found || raw == "" {
		return AuthResult{Kind: AuthKindMalformed}
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(auth.JWTSecret), nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return AuthResult{Kind: AuthKindExpired}
		}
		return AuthResult{Kind: AuthKindMalformed}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return AuthResult{Kind: AuthKindMalformed}
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return AuthResult{Kind: AuthKindMalformed}
	}
	if jti, _ := claims["jti"].(string); jti != "" && lo.Contains(auth.RevokedTokenIDs, jti) {
		return AuthResult{Kind: AuthKindRevoked}
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return AuthResult{
		Kind:     AuthKindOK,
		Identity: types.UserIdentity{UID: uid, Email: email, Name: name},
	}
}

// AuthMiddleware rejects unauthenticated requests with 401 and attaches the
// resolved identity to the gin and request contexts.
func AuthMiddleware(cfg *cfgpkg.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := Authenticate(c.GetHeader("Authorization"), &cfg.Auth)
		if !res.OK() {
			log.Infow("authentication rejected", "kind", res.Kind.String(), "path", c.FullPath())
			c.AbortWithStatusJSON(401, response.ErrorT[any](response.APIResponseCodeUnauthorized, res.Kind.String()))
			return
		}
		c.Set("user", res.Identity)
		ctx := context.WithValue(c.Request.Context(), "user_id", res.Identity.UID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserFrom returns the authenticated identity attached by AuthMiddleware.
func UserFrom(c *gin.Context) (types.UserIdentity, bool) {
	v, ok := c.Get("user")
	if !ok {
		return types.UserIdentity{}, false
	}
	id, ok := v.(types.UserIdentity)
	return id, ok
}
