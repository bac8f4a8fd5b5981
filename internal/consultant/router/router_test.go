package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/consultant/handler"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Register(engine, Handlers{
		Consultant: &handler.ConsultantHandler{},
		Admin:      &handler.AdminHandler{},
		System:     &handler.SystemHandler{},
	})
	return engine
}

func TestRegister_Routes(t *testing.T) {
	engine := newEngine(t)

	routes := map[string]bool{}
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /rag/turn",
		"POST /rag/sessions",
		"GET /rag/sessions/:id/messages",
		"POST /rag/quote",
		"POST /rag/quote/:id/status",
		"POST /rag/index/:kind/:id",
		"POST /rag/patterns/:id/approve",
		"GET /healthz",
		"GET /swagger/*any",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestRegister_SwaggerDoc(t *testing.T) {
	engine := newEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/rag/turn"`)
	assert.Contains(t, w.Body.String(), "LazySoft Consultant API")
}

func TestRegister_NoRoute(t *testing.T) {
	engine := newEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rag/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`"code":%d`, errors.ErrRouteNotFound.Code))
}
