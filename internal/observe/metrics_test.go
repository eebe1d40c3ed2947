package observe

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pan1c/payload-analyzer/internal/lifecycle"
)

func newInstrumentedRouter(t *testing.T, inflight *lifecycle.InFlight) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	InitMetrics(nil, inflight)
	router := gin.New()
	router.Use(MetricsMiddleware(inflight))
	router.Use(gin.Recovery())
	return router
}

func TestParseMetricsLabels(t *testing.T) {
	labels, err := ParseMetricsLabels("service=payload-analyzer,env=test")
	require.NoError(t, err)
	require.Equal(t, "payload-analyzer", labels["service"])
	require.Equal(t, "test", labels["env"])

	labels, err = ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)

	_, err = ParseMetricsLabels("missing-separator")
	require.Error(t, err)

	_, err = ParseMetricsLabels("9bad=key")
	require.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	require.Equal(t, ClassSuccess, ClassifyStatus(http.StatusOK))
	require.Equal(t, ClassSuccess, ClassifyStatus(http.StatusNoContent))
	require.Equal(t, ClassSuccess, ClassifyStatus(http.StatusMovedPermanently))
	require.Equal(t, ClassClientError, ClassifyStatus(http.StatusBadRequest))
	require.Equal(t, ClassClientError, ClassifyStatus(http.StatusTooManyRequests))
	require.Equal(t, ClassServerError, ClassifyStatus(http.StatusInternalServerError))
}

func TestMetricsMiddleware_RecordsOutcomes(t *testing.T) {
	inflight := lifecycle.NewInFlight()
	router := newInstrumentedRouter(t, inflight)
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/bad", func(c *gin.Context) { c.String(http.StatusBadRequest, "bad") })
	router.GET("/boom", func(c *gin.Context) { panic("handler exploded") })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Equal(t, 3.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/ok", "GET", ClassSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/bad", "GET", ClassClientError)))
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestErrors.WithLabelValues("/bad", "GET", ClassClientError)))
	// A recovered panic still counts, as a server error.
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/boom", "GET", ClassServerError)))
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestErrors.WithLabelValues("/boom", "GET", ClassServerError)))

	// Counters are monotonic: reading twice with no traffic yields the
	// same values.
	require.Equal(t,
		testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/ok", "GET", ClassSuccess)),
		testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/ok", "GET", ClassSuccess)))

	require.EqualValues(t, 0, inflight.Count())
}

func TestMetricsMiddleware_ConcurrentRequestsExactCount(t *testing.T) {
	inflight := lifecycle.NewInFlight()
	router := newInstrumentedRouter(t, inflight)
	router.GET("/conc", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/conc", "GET", ClassSuccess))

	const n = 500
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conc", nil))
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		require.Equal(t, http.StatusOK, code)
	}
	// No lost updates under contention: the counter moved by exactly n, and
	// every in-flight increment was matched by a decrement.
	require.Equal(t, before+n, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/conc", "GET", ClassSuccess)))
	require.EqualValues(t, 0, inflight.Count())
}

func TestMetricsMiddleware_UnmatchedRouteLabel(t *testing.T) {
	inflight := lifecycle.NewInFlight()
	router := newInstrumentedRouter(t, inflight)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(routeUnmatched, "GET", ClassClientError))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/route/12345", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Raw request paths never become labels; everything unmatched shares one.
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(routeUnmatched, "GET", ClassClientError))
	require.Equal(t, before+1, after)
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	inflight := lifecycle.NewInFlight()
	router := newInstrumentedRouter(t, inflight)

	release := make(chan struct{})
	entered := make(chan struct{})
	router.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.String(http.StatusOK, "done")
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()

	<-entered
	require.EqualValues(t, 1, inflight.Count())
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request did not complete")
	}
	require.EqualValues(t, 0, inflight.Count())
}

func TestRecord_NoopBeforeInit(t *testing.T) {
	// Recording must never fail the caller, even if metrics were somehow
	// not initialized. The saved vectors are swapped out to simulate that.
	savedTotal, savedErrors, savedDuration := httpRequestsTotal, httpRequestErrors, httpRequestDuration
	httpRequestsTotal, httpRequestErrors, httpRequestDuration = nil, nil, nil
	defer func() {
		httpRequestsTotal, httpRequestErrors, httpRequestDuration = savedTotal, savedErrors, savedDuration
	}()

	require.NotPanics(t, func() {
		Record("/any", http.MethodGet, http.StatusOK, time.Millisecond)
	})
}
