package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExposesDomainCounters(t *testing.T) {
	reg := Registry()

	before := testutil.ToFloat64(postMutations.WithLabelValues("like"))
	IncPostMutation("like")
	IncNotification("like")
	assert.Equal(t, before+1, testutil.ToFloat64(postMutations.WithLabelValues("like")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["linkup_post_mutations_total"])
	assert.True(t, names["linkup_notifications_created_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMiddlewareLabelsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/posts/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	})

	before := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/posts/:id", "404"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/posts/:id", "404")))
}
