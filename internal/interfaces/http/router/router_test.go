package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouter_Setup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		opts []RouterOption
		path string
	}{
		{"unversioned", nil, "/api/whatsapp/status"},
		{"versioned", []RouterOption{WithAPIVersion("v1")}, "/api/v1/whatsapp/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			marked := false
			group := NewDomainGroup("/whatsapp").
				Use(func(c *gin.Context) { marked = true; c.Next() }).
				GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })
			NewRouter(engine, tt.opts...).Register(group).Setup()

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, marked)

			w = httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.JSONEq(t, `{"success":false,"message":"Not found"}`, w.Body.String())
		})
	}
}
