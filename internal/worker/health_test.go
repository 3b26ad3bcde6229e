package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", p.err)
}

type fixedSessions int

func (n fixedSessions) Sessions() int { return int(n) }

func get(t *testing.T, h http.Handler, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthServer_Healthy(t *testing.T) {
	hs := NewHealthServer(0, fakePinger{}, fixedSessions(3), zap.NewNop())

	code, resp := get(t, hs.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["redis"])

	code, resp = get(t, hs.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp.Status)
	require.NotNil(t, resp.Sessions)
	assert.Equal(t, 3, *resp.Sessions)
}

func TestHealthServer_RedisDown(t *testing.T) {
	hs := NewHealthServer(0, fakePinger{err: errors.New("refused")}, nil, zap.NewNop())

	code, resp := get(t, hs.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)

	code, resp = get(t, hs.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)
}
