package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HasPrefix(t *testing.T) {
	g := NewGenerator()
	got := g.New(PrefixRun)
	assert.True(t, strings.HasPrefix(got, string(PrefixRun)))
}

func TestNew_MonotonicWithinSameMillisecond(t *testing.T) {
	g := NewGenerator()
	prev := ""
	for i := 0; i < 1000; i++ {
		got := g.New(PrefixJob)
		if prev != "" {
			require.Greater(t, got, prev)
		}
		prev = got
	}
}
