package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
	"github.com/noah-isme/civic-complaints-api/pkg/middleware/requestid"
)

type authStub map[string]*models.User

func (s authStub) Authenticate(ctx context.Context, token string) (*models.User, error) {
	user, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if !user.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is deactivated")
	}
	return user, nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func perform(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRoles(t *testing.T) {
	auth := authStub{
		"admin":   {ID: "a1", Role: models.RoleAdmin, IsActive: true},
		"citizen": {ID: "u1", Role: models.RoleUser, IsActive: true},
		"gone":    {ID: "u2", Role: models.RoleUser, IsActive: false},
	}
	r := newRouter()
	r.GET("/me", JWT(auth), func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/admin", JWT(auth), AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/me", "citizen")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "forged").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/me", "gone").Code)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/admin", "admin").Code)
	denied := perform(r, http.MethodGet, "/admin", "citizen")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Contains(t, denied.Body.String(), "role user is not authorized")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token citizen")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	repo := &auditStub{}
	r := newRouter()
	r.PUT("/departments/:id", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
		c.Next()
	}, Audit(repo, nil, "DEPARTMENT_UPDATE", "department"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	perform(r, http.MethodPut, "/departments/d1", "")
	perform(r, http.MethodPut, "/departments/d1?fail=1", "")
	require.Len(t, repo.logs, 1)
	entry := repo.logs[0]
	assert.Equal(t, "DEPARTMENT_UPDATE", entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "a1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "d1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"/departments/:id"`)

	repo.err = errors.New("db down")
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPut, "/departments/d2", "").Code)
}

func TestResponseMetaCarriesRequestID(t *testing.T) {
	r := newRouter()
	r.Use(requestid.Middleware(), WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/x", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, w.Header().Get("X-Request-ID"), meta["request_id"])
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsGroupsUnmatchedRoutes(t *testing.T) {
	metrics := service.NewMetricsService(nil)
	r := newRouter()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/complaints/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	perform(r, http.MethodGet, "/complaints/c1", "")
	perform(r, http.MethodGet, "/nowhere/abc", "")
	body := perform(r, http.MethodGet, "/metrics", "").Body.String()

	assert.Contains(t, body, `path="/complaints/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.False(t, strings.Contains(body, `path="/metrics"`))
}
