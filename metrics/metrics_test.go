package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New("")

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Broadcast("code-update", 3)
	m.Broadcast("code-update", 2)
	m.Broadcast("user-count", 1)
	m.RoomCreated("r1")
	m.RoomReaped("r1")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.disconnectionsTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.broadcastsTotal.WithLabelValues("code-update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastsTotal.WithLabelValues("user-count")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomsReapedTotal))
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New("test")
	rooms, conns := 3, 7
	m.WatchGauges(func() int { return rooms }, func() int { return conns })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_active_rooms 3")
	assert.Contains(t, string(body), "test_active_connections 7")
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a := New("dup")
	b := New("dup")
	a.WatchGauges(func() int { return 0 }, func() int { return 0 })
	b.WatchGauges(func() int { return 0 }, func() int { return 0 })
	assert.NotSame(t, a.Registry(), b.Registry())
}
