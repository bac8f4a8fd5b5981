package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailLocalizesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/rag/turn", nil)
	c.Request.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en;q=0.8")

	Fail(c, errors.ErrConcurrencyConflict)

	assert.Equal(t, http.StatusConflict, w.Code)
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, errors.ErrConcurrencyConflict.Code, r.Code)
	assert.Equal(t, errors.ErrConcurrencyConflict.MessageUK, r.Message)
	assert.NotZero(t, r.Timestamp)
}

func TestOKCarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	c.Set("request_id", "req-1")

	OK(c, gin.H{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
}

func TestHTTPStatusFallback(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{0, http.StatusOK},
		{errors.MakeCode(20, errors.CategoryRequest, 9), http.StatusBadRequest},
		{errors.MakeCode(20, errors.CategoryConflict, 9), http.StatusConflict},
		{errors.MakeCode(20, errors.CategoryDatabase, 9), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := &Response{Code: tt.code}
		assert.Equal(t, tt.want, r.HTTPStatus(), "code %d", tt.code)
	}
}
