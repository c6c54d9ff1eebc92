package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func do(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RouterOption
		path    string
		wantHit bool
	}{
		{"default version", nil, "/api/v1/finance/ping", true},
		{"custom version", []RouterOption{WithAPIVersion("v2")}, "/api/v2/finance/ping", true},
		{"wrong version", []RouterOption{WithAPIVersion("v2")}, "/api/v1/finance/ping", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			r := NewRouter(engine, tt.opts...)
			r.Register(NewDomainGroup("finance", "/finance").GET("/ping", ok("pong")))
			r.Setup()

			w := do(engine, http.MethodGet, tt.path)
			if tt.wantHit {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, "pong", w.Body.String())
			} else {
				assert.Equal(t, http.StatusNotFound, w.Code)
			}
		})
	}
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("finance", "/finance").
		GET("/items", ok("get")).
		POST("/items", ok("post")).
		PUT("/items/:id", ok("put")).
		PATCH("/items/:id", ok("patch")).
		DELETE("/items/:id", ok("delete"))
	NewRouter(engine).Register(group).Setup()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/finance/items", "get"},
		{http.MethodPost, "/api/v1/finance/items", "post"},
		{http.MethodPut, "/api/v1/finance/items/1", "put"},
		{http.MethodPatch, "/api/v1/finance/items/1", "patch"},
		{http.MethodDelete, "/api/v1/finance/items/1", "delete"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := do(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestDomainGroup_MiddlewareAndSubgroups(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("finance", "/finance").Use(func(c *gin.Context) {
		c.Header("X-Group", "finance")
		c.Next()
	})
	group.Group("disbursements", "/disbursements").
		GET("", ok("list")).
		GET("/next-thursday", ok("thursday"))
	NewRouter(engine).Register(group).Setup()

	w := do(engine, http.MethodGet, "/api/v1/finance/disbursements/next-thursday")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "thursday", w.Body.String())
	assert.Equal(t, "finance", w.Header().Get("X-Group"))

	assert.Equal(t, []Route{
		{Method: http.MethodGet, Path: "/finance/disbursements"},
		{Method: http.MethodGet, Path: "/finance/disbursements/next-thursday"},
	}, group.Routes())
	assert.Equal(t, "finance", group.Name())
	assert.Equal(t, "/finance", group.Prefix())
}
