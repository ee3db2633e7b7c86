package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/auth"
	authhttp "github.com/sonenae10-blip/todo/internal/auth/http"
	"github.com/sonenae10-blip/todo/internal/auth/domain"
	"github.com/sonenae10-blip/todo/internal/auth/service"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/profiles"
	"github.com/sonenae10-blip/todo/internal/store/storetest"
)

type stubIdentity struct{}

func (stubIdentity) SignUp(_ context.Context, email, password string) (string, error) {
	if err := domain.ValidatePassword(password, email); err != nil {
		return "", err
	}
	return "new-uid", nil
}

func (stubIdentity) Delete(context.Context, string) error { return nil }

func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	s, _ := storetest.New(t)
	gen := handles.GeneratorFunc(func() string { return "todoabc123" })
	now := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	p := profiles.NewService(s, gen, now, logger.Discard())
	h := authhttp.New(service.NewAuthService(stubIdentity{}, p, logger.Discard()))

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterPublic(api)
	api.Use(auth.HeaderUser())
	h.Register(api)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSignUp(t *testing.T) {
	r := setupRouter(t)

	t.Run("creates account", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
			strings.NewReader(`{"email":"me@example.com","password":"abcd1234"}`))
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		body := decode(t, w)
		profile := body["profile"].(map[string]any)
		assert.Equal(t, "new-uid", profile["id"])
		assert.Equal(t, "todoabc123", profile["handle"])
	})

	t.Run("weak password is localized", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
			strings.NewReader(`{"email":"me@example.com","password":"abcdefgh"}`))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "비밀번호 규칙을 확인해주세요.", body["error"])
		assert.Equal(t, "invalid_argument", body["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "회원가입에 실패했습니다.", decode(t, w)["error"])
	})
}

func TestMe(t *testing.T) {
	r := setupRouter(t)

	t.Run("requires a user", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ensures profile", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("X-User-Id", "u1")
		req.Header.Set("X-User-Email", "u1@example.com")
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["ok"])
		profile := body["profile"].(map[string]any)
		assert.Equal(t, "u1", profile["id"])
		assert.Equal(t, "todoabc123", profile["handle"])
		assert.Equal(t, "u1@example.com", profile["email"])
	})
}
