package httpapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ejc3/workflow/internal/apierr"
)

func TestStatusFor_MapsKnownKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apierr.NotFound("run", "r1"), http.StatusNotFound},
		{apierr.Conflict("run", "r1"), http.StatusConflict},
		{apierr.Validation("bad"), http.StatusBadRequest},
		{apierr.Transport(errors.New("boom")), http.StatusBadGateway},
		{apierr.Exhausted("job", "j1", "maxed out"), http.StatusGone},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status)
	}
}
