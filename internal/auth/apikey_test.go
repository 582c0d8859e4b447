package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(key))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		target string
		header map[string]string
		want   int
	}{
		{"disabled", "", "/x", nil, http.StatusNoContent},
		{"missing", "secret", "/x", nil, http.StatusUnauthorized},
		{"header", "secret", "/x", map[string]string{"X-API-Key": "secret"}, http.StatusNoContent},
		{"bearer", "secret", "/x", map[string]string{"Authorization": "Bearer secret"}, http.StatusNoContent},
		{"query", "secret", "/x?api_key=secret", nil, http.StatusNoContent},
		{"wrong", "secret", "/x", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			newRouter(tt.key).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
