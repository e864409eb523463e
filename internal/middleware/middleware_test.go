package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	r := gin.New()
	r.GET("/me", JWTAuthMiddleware("secret"), func(c *gin.Context) {
		id, _ := c.Get("user_id")
		role, _ := c.Get("role")
		c.JSON(http.StatusOK, gin.H{"user_id": id, "role": role})
	})

	valid, err := helpers.GenerateToken("secret", userID, "treasurer", time.Hour)
	require.NoError(t, err)
	expired, err := helpers.GenerateToken("secret", userID, "treasurer", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := helpers.GenerateToken("other", userID, "treasurer", time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": userID.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"alg none", "Bearer " + noneAlg, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), userID.String())
				assert.Contains(t, w.Body.String(), "treasurer")
			}
		})
	}
}

func TestServiceKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("svc"), bcrypt.MinCost)
	require.NoError(t, err)

	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r := gin.New()
	r.POST("/internal", ServiceKeyMiddleware(string(hash)), ok)
	r.POST("/unconfigured", ServiceKeyMiddleware(""), ok)

	tests := []struct {
		path string
		key  string
		want int
	}{
		{"/internal", "svc", http.StatusNoContent},
		{"/internal", "nope", http.StatusUnauthorized},
		{"/internal", "", http.StatusUnauthorized},
		{"/unconfigured", "svc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, nil)
		if tt.key != "" {
			req.Header.Set("X-Service-Key", tt.key)
		}
		assert.Equal(t, tt.want, serve(r, req).Code, "%s %q", tt.path, tt.key)
	}
}

func TestRequestLoggerTagsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := serve(r, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"status":200`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestCORSMiddlewareAnswersPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.OPTIONS("/hook", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/hook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
