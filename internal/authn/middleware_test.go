package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejc3/workflow/pkg/world"
)

func newTestRouter(issuer *Issuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(issuer))
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func TestMiddleware_MissingHeader_Writes400(t *testing.T) {
	r := newTestRouter(NewIssuer("test-secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing or malformed Authorization header")
}

func TestMiddleware_InvalidToken_Writes400(t *testing.T) {
	r := newTestRouter(NewIssuer("test-secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestMiddleware_ValidToken_PassesThrough(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	r := newTestRouter(issuer)

	tok, err := issuer.Issue(world.Identity{Environment: "prod", OwnerID: "o1", ProjectID: "p1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
