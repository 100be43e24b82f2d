package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubToken map[string]interface{}

func (s stubToken) Claims(v interface{}) error {
	b, err := json.Marshal(map[string]interface{}(s))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// stubVerifier accepts exactly one raw token.
type stubVerifier struct {
	accept string
	claims stubToken
}

func (s stubVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw != s.accept {
		return nil, errors.New("signature mismatch")
	}
	return s.claims, nil
}

func guarded(ver Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.DELETE("/documents/:id", AuthMiddleware(ver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": Subject(c)})
	})
	return g
}

func call(g *gin.Engine, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/documents/abc", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	g := guarded(stubVerifier{accept: "t0k", claims: stubToken{"sub": "nurse-1"}})

	for _, h := range []string{"", "t0k", "Basic dXNlcjpwYXNz", "Bearer ", "Bearer   ", "Bearer wrong"} {
		w := call(g, h)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", h)
	}
	assert.Contains(t, call(g, "Bearer wrong").Body.String(), "signature mismatch")
}

func TestAuthMiddleware_SetsClaims(t *testing.T) {
	g := guarded(stubVerifier{accept: "t0k", claims: stubToken{"sub": "nurse-1", "role": "ward"}})

	w := call(g, "Bearer t0k")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sub":"nurse-1"}`, w.Body.String())
}

func TestSubject_WithoutClaims(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", Subject(c))

	c.Set(ClaimsKey, "not a map")
	assert.Equal(t, "", Subject(c))

	c.Set(ClaimsKey, map[string]interface{}{"sub": 42})
	assert.Equal(t, "", Subject(c))
}
