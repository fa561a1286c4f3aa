package authn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejc3/workflow/pkg/world"
)

func TestIssueThenResolve_RoundTrips(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	identity := world.Identity{Environment: "prod", OwnerID: "o1", ProjectID: "p1"}

	tok, err := issuer.Issue(identity)
	require.NoError(t, err)

	got, err := issuer.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestResolve_RejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	tok, err := issuer.Issue(world.Identity{Environment: "prod"})
	require.NoError(t, err)

	other := NewIssuer("secret-b", time.Hour)
	_, err = other.Resolve(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResolve_RejectsExpiredToken(t *testing.T) {
	// NewIssuer replaces a non-positive ttl with defaultTTL, so set a
	// negative ttl on the Issuer directly to sign an already-expired token.
	issuer := NewIssuer("test-secret", time.Hour)
	issuer.ttl = -time.Minute
	tok, err := issuer.Issue(world.Identity{Environment: "prod"})
	require.NoError(t, err)

	_, err = issuer.Resolve(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNeedsRefresh_TrueNearExpiry(t *testing.T) {
	issuer := NewIssuer("test-secret", 1*time.Minute)
	tok, err := issuer.Issue(world.Identity{Environment: "prod"})
	require.NoError(t, err)
	assert.True(t, issuer.NeedsRefresh(tok))
}

func TestNeedsRefresh_FalseFarFromExpiry(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	tok, err := issuer.Issue(world.Identity{Environment: "prod"})
	require.NoError(t, err)
	assert.False(t, issuer.NeedsRefresh(tok))
}

func TestBearerToken_ParsesHeader(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	_, err = BearerToken("Basic abc")
	assert.Error(t, err)

	_, err = BearerToken("")
	assert.Error(t, err)
}
