package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindTarget struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
}

func TestFormatValidationErrors(t *testing.T) {
	t.Run("reports fields by json tag", func(t *testing.T) {
		err := validate.Struct(&bindTarget{Email: "not-an-email"})
		require.Error(t, err)

		fields := FormatValidationErrors(err)
		assert.Equal(t, "failed email", fields["email"])
		assert.Equal(t, "failed required", fields["subject"])
	})

	t.Run("non validation error falls back instead of panicking", func(t *testing.T) {
		fields := FormatValidationErrors(errors.New("boom"))
		assert.Equal(t, map[string]any{"_": "boom"}, fields)
	})

	t.Run("invalid validation value falls back", func(t *testing.T) {
		s := "not a struct"
		err := validate.Struct(&s)
		require.Error(t, err)

		assert.NotPanics(t, func() {
			fields := FormatValidationErrors(err)
			assert.Contains(t, fields, "_")
		})
	})
}

func TestBind(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(body string) *gin.Context {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		return c
	}

	t.Run("valid body binds", func(t *testing.T) {
		c := newCtx(`{"email":"ada@example.com","subject":"Hi"}`)

		var dest bindTarget
		assert.True(t, Bind(c, &dest))
		assert.Empty(t, c.Errors)
		assert.Equal(t, "ada@example.com", dest.Email)
	})

	t.Run("malformed json attaches api error", func(t *testing.T) {
		c := newCtx(`{not json`)

		var dest bindTarget
		assert.False(t, Bind(c, &dest))
		require.Len(t, c.Errors, 1)
	})

	t.Run("failed validation reports field map", func(t *testing.T) {
		c := newCtx(`{"email":"nope"}`)

		var dest bindTarget
		assert.False(t, Bind(c, &dest))
		require.Len(t, c.Errors, 1)
	})
}
