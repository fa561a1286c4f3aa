package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s := Session{ServerURL: "https://localhost:8443", Token: "tok-1"}
	require.NoError(t, s.Save())

	got, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLoadSession_MissingFileReturnsZeroValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, Session{}, got)
}
