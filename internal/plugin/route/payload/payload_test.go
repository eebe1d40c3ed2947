package payload

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	registryroute "github.com/pan1c/payload-analyzer/internal/registry/route"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gin.EnableJsonDecoderDisallowUnknownFields()
	router := gin.New()
	for _, loader := range registryroute.MainRouteLoaders() {
		require.NoError(t, loader(router))
	}
	return router
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPayload_Valid(t *testing.T) {
	router := newRouter(t)

	rec := post(router, `{"numbers":[1,2,3,4,5],"text":"test text"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1.0, resp.Numeric.Min)
	require.Equal(t, 5.0, resp.Numeric.Max)
	require.Equal(t, 3.0, resp.Numeric.Mean)
	require.Equal(t, 3.0, resp.Numeric.Median)
	require.InDelta(t, 1.581, resp.Numeric.StdDev, 0.001)
	require.Equal(t, 2, resp.Text.WordCount)
	require.Equal(t, 9, resp.Text.CharCount)
}

func TestPayload_EmptyTextIsValid(t *testing.T) {
	router := newRouter(t)

	rec := post(router, `{"numbers":[7],"text":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Text.WordCount)
	require.Equal(t, 0.0, resp.Numeric.StdDev)
}

func TestPayload_ValidationFailuresReturn400(t *testing.T) {
	router := newRouter(t)

	cases := map[string]string{
		"empty numbers":       `{"numbers":[],"text":"x"}`,
		"non-numeric element": `{"numbers":[1,"two"],"text":"x"}`,
		"missing numbers":     `{"text":"x"}`,
		"missing text":        `{"numbers":[1]}`,
		"unknown field":       `{"numbers":[1],"text":"x","extra":true}`,
		"not json":            `this is not json`,
		"wrong shape":         `{"numbers":"1,2,3","text":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(router, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			// Structured error body, not the framework default.
			var errBody map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
			require.Contains(t, errBody, "error")
		})
	}
}
