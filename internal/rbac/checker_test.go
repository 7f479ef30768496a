package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	assert.True(t, c.Has("service", "predict:run"))
	assert.False(t, c.Has("service", "models:list"))
	assert.True(t, c.Has("analyst", "models:list"))
	assert.True(t, c.Has("admin", "tokens:issue"))
	assert.False(t, c.Has("guest", "predict:run"))
	assert.Equal(t, []string{"admin", "analyst", "service"}, c.Roles())
	assert.True(t, c.Known("service"))
	assert.False(t, c.Known("guest"))
}

func TestWildcardSuffix(t *testing.T) {
	c := NewChecker(map[string][]string{"ops": {"models:*"}})
	assert.True(t, c.Has("ops", "models:list"))
	assert.False(t, c.Has("ops", "predict:run"))
}

func TestRequire(t *testing.T) {
	c := NewChecker(nil)
	h := c.Require("models:list")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{"": 403, "service": 403, "analyst": 204, "admin": 204} {
		req := httptest.NewRequest(http.MethodGet, "/models", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
