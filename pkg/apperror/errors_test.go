package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperror.NotFound("Post not found"), http.StatusNotFound},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden},
		{"validation", apperror.Validation("empty"), http.StatusBadRequest},
		{"conflict", apperror.Conflict("dup"), http.StatusConflict},
		{"wrapped sentinel", fmt.Errorf("repo: %w", apperror.ErrNotFound), http.StatusNotFound},
		{"rate limit", apperror.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"transient", apperror.Transient(errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, apperror.MapErrorToStatus(tc.err))
		})
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	require.Equal(t, "Internal server error", apperror.Message(errors.New("mongo: socket closed")))
	require.Equal(t, "Post not found", apperror.Message(fmt.Errorf("get: %w", apperror.NotFound("Post not found"))))
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("delete post: %w", apperror.Forbidden("You can only delete your own posts"))
	require.ErrorIs(t, err, apperror.ErrForbidden)
	require.False(t, errors.Is(err, apperror.ErrNotFound))
}
