package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func render(t *testing.T, err error) (int, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zaptest.NewLogger(t))(err, c)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body["message"]
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", Validation("name, email, and password are required"), 400, "name, email, and password are required"},
		{"unauthorized", Unauthorized(), 401, "unauthorized"},
		{"forbidden", Forbidden("unable to create a franchise"), 403, "unable to create a franchise"},
		{"not found", NotFound("user not found"), 404, "user not found"},
		{"conflict", Conflict("email already exists"), 409, "email already exists"},
		{"internal hides cause", Internal("create user failed", errors.New("dial tcp: secret-host")), 500, "create user failed"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), 405, "Method Not Allowed"},
		{"plain error", errors.New("boom"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := render(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Internal("failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed: cause", err.Error())
}
