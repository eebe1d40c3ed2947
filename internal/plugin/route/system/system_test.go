package system

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	registryroute "github.com/pan1c/payload-analyzer/internal/registry/route"
)

func newManagementRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	for _, loader := range registryroute.ManagementRouteLoaders() {
		require.NoError(t, loader(router))
	}
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// The readiness state is process-wide and the draining transition is
// irreversible, so the whole lifecycle is exercised in one sequential test.
func TestProbesAcrossLifecycle(t *testing.T) {
	router := newManagementRouter(t)

	// STARTING: alive but not ready.
	require.Equal(t, http.StatusOK, get(router, "/health").Code)
	rec := get(router, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"starting"}`, rec.Body.String())

	// READY: probe flips to 200.
	MarkReady()
	require.Equal(t, http.StatusOK, get(router, "/health").Code)
	rec = get(router, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	// DRAINING: readiness fails while liveness keeps answering, so the
	// orchestrator stops routing traffic without killing the pod.
	Readiness().BeginDraining()
	require.Equal(t, http.StatusOK, get(router, "/health").Code)
	rec = get(router, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"draining"}`, rec.Body.String())

	// MarkReady after draining must not resurrect readiness.
	MarkReady()
	require.Equal(t, http.StatusServiceUnavailable, get(router, "/ready").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newManagementRouter(t)

	rec := get(router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
