package authn

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/apierr"
	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/world"
)

// identityContextKey is the gin.Context key Middleware stores the resolved
// world.Identity under; handlers read it back with IdentityFrom.
const identityContextKey = "workflow.identity"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, grounded in the reference server's GetAuthorizationToken.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("authn: missing bearer token")
	}
	return parts[1], nil
}

// Middleware authenticates every request through issuer, refreshing the
// token and echoing it back on the response when it's near expiry, the
// same behavior as the reference server's JWTAuthMiddleware.
func Middleware(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			httpapi.Error(c, apierr.Validation("missing or malformed Authorization header"))
			c.Abort()
			return
		}

		identity, err := issuer.Resolve(c.Request.Context(), tok)
		if err != nil {
			httpapi.Error(c, apierr.Validation("invalid or expired token"))
			c.Abort()
			return
		}

		if issuer.NeedsRefresh(tok) {
			if fresh, err := issuer.Issue(identity); err == nil {
				c.Header("Authorization", "Bearer "+fresh)
			}
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// IdentityFrom reads the Identity Middleware resolved for this request.
func IdentityFrom(c *gin.Context) world.Identity {
	v, _ := c.Get(identityContextKey)
	identity, _ := v.(world.Identity)
	return identity
}
