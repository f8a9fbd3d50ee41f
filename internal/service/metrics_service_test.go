package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

func TestMetricsServiceLifecycleCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordRevocation("MISUSE_VIOLATION")
	m.RecordRevocation("MISUSE_VIOLATION")
	m.RecordEnrollmentTransition("COMPLETED", "TERMINATED_VIOLATION")
	m.RecordRateLimited("login")
	m.RecordCertificateIssued()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.revocations.WithLabelValues("MISUSE_VIOLATION")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.enrollmentTransitions.WithLabelValues("COMPLETED", "TERMINATED_VIOLATION")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimited.WithLabelValues("login")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.certificatesIssued))

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/certificates/verify/:code", http.StatusOK, 5*time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "certificate_revocations_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordRevocation("ADMINISTRATIVE_ERROR")
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubCacheRepo struct {
	values  map[string]string
	deleted []string
	getErr  error
}

func (r *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	v, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*string)) = v
	return nil
}

func (r *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	r.values[key] = value.(string)
	return nil
}

func (r *stubCacheRepo) Delete(ctx context.Context, keys ...string) error {
	r.deleted = append(r.deleted, keys...)
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

func TestCacheService(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, zap.NewNop(), true)
	ctx := context.Background()

	var out string
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", "v", 0))
	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v", out)
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))

	require.NoError(t, svc.Invalidate(ctx, "k"))
	assert.Equal(t, []string{"k"}, repo.deleted)

	repo.getErr = errors.New("redis down")
	_, err = svc.Get(ctx, "k", &out)
	assert.Error(t, err)

	disabled := NewCacheService(repo, metrics, 0, zap.NewNop(), false)
	hit, err = disabled.Get(ctx, "k", &out)
	assert.NoError(t, err)
	assert.False(t, hit)
}
