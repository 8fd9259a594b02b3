package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(apiKey))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		serverKey  string
		headers    map[string]string
		wantStatus int
	}{
		{"auth disabled", "", nil, http.StatusOK},
		{"missing key", "secret", nil, http.StatusUnauthorized},
		{"wrong key", "secret", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"valid key", "secret", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"valid bearer", "secret", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"wrong bearer", "secret", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
		{"header wins over bearer", "secret", map[string]string{"X-API-Key": "secret", "Authorization": "Bearer nope"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRouter(tt.serverKey)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
