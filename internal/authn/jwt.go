// Package authn implements the JWT-backed world.AuthProvider that
// cmd/apiserver uses to resolve the Environment/OwnerID/
// ProjectID identity spec.md §1 leaves out of scope, adapted from the
// reference server's middleware.JWTAuthMiddleware (Claims/GenerateJWT).
package authn

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ejc3/workflow/pkg/world"
)

// defaultTTL and refreshWindow mirror the reference server's JWTExpire /
// JWTNewExpire constants: tokens are issued for an hour and silently
// reissued once they're within five minutes of expiring.
const (
	defaultTTL    = time.Hour
	refreshWindow = 5 * time.Minute
)

// Claims carries the tenant identity inside the token's payload instead of
// the reference server's single Role string, since World's AuthProvider
// resolves a three-field Identity rather than a role name.
type Claims struct {
	Environment string `json:"environment"`
	OwnerID     string `json:"ownerId"`
	ProjectID   string `json:"projectId"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies identity tokens with a single HMAC secret,
// matching the reference server's fixed-key HS256 scheme.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer from the configured JWT secret. ttl<=0 uses
// defaultTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token carrying identity, expiring after the Issuer's ttl.
func (i *Issuer) Issue(identity world.Identity) (string, error) {
	claims := &Claims{
		Environment: identity.Environment,
		OwnerID:     identity.OwnerID,
		ProjectID:   identity.ProjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ErrTokenInvalid is returned for any malformed, expired or mis-signed
// token; callers should treat it as unauthenticated rather than inspect it.
var ErrTokenInvalid = errors.New("authn: token invalid")

// Resolve implements world.AuthProvider by parsing and validating tokenStr
// against the Issuer's secret.
func (i *Issuer) Resolve(_ context.Context, tokenStr string) (world.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return world.Identity{}, ErrTokenInvalid
	}
	return world.Identity{
		Environment: claims.Environment,
		OwnerID:     claims.OwnerID,
		ProjectID:   claims.ProjectID,
	}, nil
}

// NeedsRefresh reports whether tokenStr is close enough to expiry that the
// caller should reissue it, mirroring the reference middleware's
// refresh-on-use behavior.
func (i *Issuer) NeedsRefresh(tokenStr string) bool {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(time.Now().Add(refreshWindow))
}
