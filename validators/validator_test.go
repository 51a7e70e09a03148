package validators

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		input   interface{}
		wantErr string
	}{
		{
			name:  "valid signup",
			input: &models.SignupRequest{Name: "Ada Lovelace", Username: "ada", Email: "ada@example.com", Password: "secret1"},
		},
		{
			name:    "bad email and short password",
			input:   &models.SignupRequest{Name: "Ada", Username: "ada", Email: "nope", Password: "123"},
			wantErr: "email must be a valid email; password must be at least 6 characters",
		},
		{
			name:    "username with symbols",
			input:   &models.SignupRequest{Name: "Ada", Username: "ada!", Email: "ada@example.com", Password: "secret1"},
			wantErr: "username may only contain letters and digits",
		},
		{
			name: "bad media type",
			input: &models.CreatePostRequest{Media: []models.MediaUpload{
				{File: "https://cdn.example.com/a.gif", Type: "gif"},
			}},
			wantErr: "media[0].type must be one of: image video",
		},
		{
			name: "too many media",
			input: &models.CreatePostRequest{Media: []models.MediaUpload{
				{File: "a", Type: "image"}, {File: "b", Type: "image"}, {File: "c", Type: "image"},
				{File: "d", Type: "image"}, {File: "e", Type: "image"},
			}},
			wantErr: "media can have at most 4 items",
		},
		{
			name:    "empty comment",
			input:   &models.CreateCommentRequest{},
			wantErr: "content is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var he *echo.HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Equal(t, tt.wantErr, he.Message)
		})
	}
}

func TestFormatValidationErrorPassthrough(t *testing.T) {
	err := errors.New("plain failure")
	assert.Equal(t, "plain failure", FormatValidationError(err))
	assert.False(t, strings.Contains(FormatValidationError(err), ";"))
}
