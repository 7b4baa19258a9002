package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	"github.com/noah-isme/sma-bulletin-api/internal/service"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bulletins/:id", handlers...)
	return r
}

func perform(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/bulletins/b-1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresHeader(t *testing.T) {
	r := newRouter(JWT(&validatorStub{}))
	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Basic abc").Code)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	r := newRouter(JWT(&validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}))
	w := perform(r, "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestJWTStoresClaims(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}}
	var seen *models.JWTClaims
	r := newRouter(JWT(stub), func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		seen, _ = value.(*models.JWTClaims)
	})
	w := perform(r, "bearer  tok-123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-123", stub.token)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
}

func withClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
	}
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		role   models.UserRole
		status int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, http.StatusOK},
		{models.RoleTeacher, http.StatusForbidden},
		{models.RoleStudent, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := newRouter(withClaims(tc.role), RequireRoles(models.RoleAdmin))
		assert.Equal(t, tc.status, perform(r, "").Code, string(tc.role))
	}

	r := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics, "/metrics"))
	r.Use(Metrics(metrics, "/metrics"))

	perform(r, "")
	req := httptest.NewRequest(http.MethodGet, "/nowhere/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/bulletins/:id",status="200"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.False(t, strings.Contains(body, "/nowhere/42"))
}

func TestAuditRecordsMutationsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withClaims(models.RoleAdmin), Audit(zap.New(core)))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/bulletins/:id", ok)
	r.POST("/bulletins/:id/publish", ok)
	r.POST("/bulletins/:id/archive", func(c *gin.Context) { c.Status(http.StatusConflict) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/bulletins/b-1", nil),
		httptest.NewRequest(http.MethodPost, "/bulletins/b-1/publish", nil),
		httptest.NewRequest(http.MethodPost, "/bulletins/b-1/archive", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/bulletins/:id/publish", fields["route"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "b-1", fields["bulletin_id"])
}
