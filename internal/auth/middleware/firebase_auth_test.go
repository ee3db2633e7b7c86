package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	authctx "github.com/sonenae10-blip/todo/internal/auth"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: "u1", Claims: map[string]interface{}{"email": "u1@example.com"}}, nil
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(FirebaseAuthMiddleware(fakeVerifier{}))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, authctx.UserFirebaseUID(c)+"|"+authctx.UserEmail(c))
	})

	tests := []struct {
		name   string
		header string
		accept string
		query  string
		code   int
		body   string
	}{
		{name: "valid bearer", header: "Bearer good", code: http.StatusOK, body: "u1|u1@example.com"},
		{name: "missing", code: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer bad", code: http.StatusUnauthorized},
		{name: "query token for event stream", accept: "text/event-stream", query: "?token=good", code: http.StatusOK, body: "u1|u1@example.com"},
		{name: "query token ignored otherwise", query: "?token=good", code: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
