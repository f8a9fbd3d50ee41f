package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

func TestCacheRepositoryRoundTrip(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()
	repo := NewCacheRepository(client, zap.NewNop())
	ctx := context.Background()

	var dest models.CertificateVerification
	err = repo.Get(ctx, "certificates:verify:CERT-1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	value := models.CertificateVerification{Code: "CERT-1", Valid: true, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Set(ctx, "certificates:verify:CERT-1", value, time.Minute))
	require.NoError(t, repo.Get(ctx, "certificates:verify:CERT-1", &dest))
	assert.Equal(t, "CERT-1", dest.Code)
	assert.True(t, dest.Valid)

	server.FastForward(2 * time.Minute)
	err = repo.Get(ctx, "certificates:verify:CERT-1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "certificates:verify:CERT-2", value, time.Minute))
	require.NoError(t, repo.Delete(ctx, "certificates:verify:CERT-2"))
	assert.False(t, server.Exists("certificates:verify:CERT-2"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Second))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
}
