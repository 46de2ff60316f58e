package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"uid":  c.Get(ContextUserID),
			"name": c.Get(ContextUsername),
		})
	}, mw)
	return e
}

func TestRequireAuth(t *testing.T) {
	tokens := security.NewTokenService("secret", time.Hour)
	tok, _, err := tokens.Issue(42, "alice")
	require.NoError(t, err)
	mw := NewAuthMiddleware(tokens)
	e := protectedEcho(mw.RequireAuth)

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid bearer", "Bearer " + tok, "", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
		{"query not allowed", "", "?token=" + tok, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.JSONEq(t, `{"uid":42,"name":"alice"}`, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	tokens := security.NewTokenService("secret", time.Hour)
	tok, _, err := tokens.Issue(7, "bob")
	require.NoError(t, err)
	e := protectedEcho(NewAuthMiddleware(tokens).WithQueryToken().RequireAuth)

	req := httptest.NewRequest(http.MethodGet, "/p?token="+tok, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthErrorBody(t *testing.T) {
	e := protectedEcho(NewAuthMiddleware(security.NewTokenService("secret", time.Hour)).RequireAuth)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing bearer token","code":"unauthorized"}`, rec.Body.String())
}
