package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/service"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

type stubVerifier map[string]*models.PortalClaims

func (s stubVerifier) ValidateToken(token string) (*models.PortalClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var verifier = stubVerifier{
	"student-token":  {UserID: "u1", Role: models.RoleStudent, StudentID: "s1"},
	"director-token": {UserID: "d1", Role: models.RoleDirector},
}

type envelope struct {
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff", JWT(verifier), Staff(), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	r.GET("/any", OptionalJWT(verifier), func(c *gin.Context) {
		if Claims(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(Claims(c).Role))
	})
	return r
}

func TestJWTRequiresToken(t *testing.T) {
	r := protectedRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/sign-in", decode(t, rec).Meta["redirect"])

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Token director-token")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid authorization header", decode(t, rec).Error.Message)
}

func TestJWTAcceptsHeaderAndCookie(t *testing.T) {
	r := protectedRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer director-token")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "d1", rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "director-token"})
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesRedirectsToOwnPortal(t *testing.T) {
	r := protectedRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer student-token")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "/student", env.Meta["redirect"])
	assert.Equal(t, "You do not have permission to access this resource.", env.Meta["user_message"])
}

func TestOptionalJWT(t *testing.T) {
	r := protectedRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/any", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Bearer student-token")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "student", rec.Body.String())
}

func TestRequireFeature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/on", RequireFeature("exports", true), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/off", RequireFeature("uploads", false), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/on", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/off", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "uploads", rec.Header().Get(FeatureHeader))
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, decode(t, rec).Error.Code)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/dashboard/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 2, snapshot.RequestsTotal)
	count, err := testutil.GatherAndCount(metrics.Registry(), "portal_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAuditLogsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(JWT(verifier))
	r.PATCH("/debriefs/:id/review", Audit(zap.New(core), "debrief.review"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	})

	for _, target := range []string{"/debriefs/d9/review", "/debriefs/d9/review?fail=1"} {
		req := httptest.NewRequest(http.MethodPatch, target, nil)
		req.Header.Set("Authorization", "Bearer director-token")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "debrief.review", fields["action"])
	assert.Equal(t, "d1", fields["user_id"])
	assert.Equal(t, "d9", fields["resource_id"])
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetDegraded(c, nil)
		SetDegraded(c, []string{"attendance"})
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta[cacheHitKey])
	assert.Equal(t, []string{"attendance"}, meta[degradedKey])
	assert.Contains(t, meta, "processing_time_ms")
}
