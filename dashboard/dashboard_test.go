package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct{}

func (fakeCatalog) Len() int { return 21 }

type fakeQueue struct{}

func (fakeQueue) Pending() int { return 3 }

type fakeBreaker string

func (b fakeBreaker) BreakerState() string { return string(b) }

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()

	Handler(Sources{Catalog: fakeCatalog{}, Queue: fakeQueue{}, Breaker: fakeBreaker("closed")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status DashboardStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 21, status.CatalogNodes)
	assert.Equal(t, 3, status.QueuePending)
	assert.Equal(t, "closed", status.Breaker)
	assert.Positive(t, status.Goroutines)
}

func TestHandler_OpenBreakerIsDegraded(t *testing.T) {
	rec := httptest.NewRecorder()

	Handler(Sources{Breaker: fakeBreaker("open")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	var status DashboardStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "degraded", status.Status)
	assert.Zero(t, status.CatalogNodes)
}
