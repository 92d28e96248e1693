// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func creatorGateStatus(t *testing.T, userType string, set bool) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/assets", func(c *gin.Context) {
		if set {
			c.Set("user_type", userType)
		}
		c.Next()
	}, CreatorRequired(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/assets", nil))
	return w.Code
}

func TestCreatorRequired(t *testing.T) {
	assert.Equal(t, http.StatusCreated, creatorGateStatus(t, "creator", true))
	assert.Equal(t, http.StatusForbidden, creatorGateStatus(t, "buyer", true))
	assert.Equal(t, http.StatusForbidden, creatorGateStatus(t, "", false))
}
