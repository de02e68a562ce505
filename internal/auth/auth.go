// Package auth identifies the caller of a request. Identities come from an external provider
// that issues signed JWTs; the user id is the token subject.
package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/pkg/errors"
)

// SessionCookie is the cookie in which browser sessions carry the identity token.
const SessionCookie = "__session"

// userIDKey is the gin context key under which the middleware stores the caller's user id.
const userIDKey = "auth.userID"

// ErrUnauthenticated is returned for missing, malformed, expired or wrongly signed tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier turns a raw token into the id of the user it was issued for.
type Verifier interface {
	UserID(ctx context.Context, token string) (string, error)
}

// Config selects the key material. The first non-empty source wins: JWKSURL, PublicKeyFile,
// HMACSecret.
type Config struct {
	JWKSURL       string
	PublicKeyFile string
	HMACSecret    string
	Issuer        string
}

// JWTVerifier validates identity tokens with golang-jwt.
type JWTVerifier struct {
	keyFunc func(ctx context.Context, token *jwt.Token) (any, error)
	methods []string
	issuer  string
}

// NewVerifier builds a verifier for the configured key source. A JWKS URL is fetched once here
// and refreshed in the background for as long as ctx lives.
func NewVerifier(ctx context.Context, cfg Config) (*JWTVerifier, error) {
	switch {
	case cfg.JWKSURL != "":
		return newJWKSVerifier(ctx, cfg)
	case cfg.PublicKeyFile != "":
		pemBytes, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "read public key")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			return nil, errors.Wrap(err, "parse public key")
		}
		return NewRSAVerifier(key, cfg.Issuer), nil
	case cfg.HMACSecret != "":
		return NewHMACVerifier([]byte(cfg.HMACSecret), cfg.Issuer), nil
	default:
		return nil, errors.New("no key source configured: set a JWKS URL, a public key file or an HMAC secret")
	}
}

// NewHMACVerifier accepts HS256 tokens signed with the shared secret.
func NewHMACVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{
		keyFunc: func(context.Context, *jwt.Token) (any, error) { return secret, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
		issuer:  issuer,
	}
}

// NewRSAVerifier accepts RS256 tokens signed with the private half of key.
func NewRSAVerifier(key *rsa.PublicKey, issuer string) *JWTVerifier {
	return &JWTVerifier{
		keyFunc: func(context.Context, *jwt.Token) (any, error) { return key, nil },
		methods: []string{jwt.SigningMethodRS256.Alg()},
		issuer:  issuer,
	}
}

func newJWKSVerifier(ctx context.Context, cfg Config) (*JWTVerifier, error) {
	cache := jwk.NewAutoRefresh(ctx)
	cache.Configure(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute))
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, errors.Wrap(err, "fetch JWKS")
	}
	return &JWTVerifier{
		keyFunc: func(ctx context.Context, token *jwt.Token) (any, error) {
			set, err := cache.Fetch(ctx, cfg.JWKSURL)
			if err != nil {
				return nil, err
			}
			return keyFromSet(set, token)
		},
		methods: []string{jwt.SigningMethodRS256.Alg()},
		issuer:  cfg.Issuer,
	}, nil
}

// keyFromSet picks the key named by the token's kid header, or the only key of the set.
func keyFromSet(set jwk.Set, token *jwt.Token) (any, error) {
	var key jwk.Key
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		found, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		key = found
	} else if set.Len() == 1 {
		key, _ = set.Get(0)
	} else {
		return nil, errors.New("token has no key id")
	}
	var raw rsa.PublicKey
	if err := key.Raw(&raw); err != nil {
		return nil, errors.Wrap(err, "export public key")
	}
	return &raw, nil
}

// UserID validates the token and returns its subject.
func (v *JWTVerifier) UserID(ctx context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.keyFunc(ctx, t)
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", errors.Wrapf(ErrUnauthenticated, "invalid token: %v", err)
	}
	if claims.Subject == "" {
		return "", errors.Wrap(ErrUnauthenticated, "token has no subject")
	}
	return claims.Subject, nil
}

// tokenFromRequest reads the bearer token, falling back to the session cookie.
func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func identify(c *gin.Context, verifier Verifier) bool {
	token := tokenFromRequest(c)
	if token == "" {
		return false
	}
	userID, err := verifier.UserID(c.Request.Context(), token)
	if err != nil {
		return false
	}
	c.Set(userIDKey, userID)
	return true
}

// Required aborts every request without a valid identity with 401 Unauthorized.
func Required(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identify(c, verifier) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Optional records the caller's identity if there is a valid one and lets every request through.
func Optional(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identify(c, verifier)
		c.Next()
	}
}

// UserID returns the identity recorded by Required or Optional.
func UserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	return userID, userID != ""
}
