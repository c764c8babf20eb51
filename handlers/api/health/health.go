package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
)

type (
	// Response is the body of GET /health.
	Response struct {
		Status           string `json:"status"`
		Uptime           int64  `json:"uptime"`
		Timestamp        string `json:"timestamp"`
		ActiveRooms      int    `json:"activeRooms"`
		TotalConnections int    `json:"totalConnections"`
		Instance         string `json:"instance"`
	}

	// Counts reports the live room and connection totals.
	Counts func() (rooms, connections int)

	// Checker answers liveness checks for one server instance.
	Checker struct {
		instance string
		started  time.Time
		now      func() time.Time
		counts   Counts
		draining atomic.Bool
	}
)

func NewChecker(counts Counts) *Checker {
	now := time.Now
	started := now()
	return &Checker{
		instance: ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		started:  started,
		now:      now,
		counts:   counts,
	}
}

// Drain makes later health checks report unhealthy so load balancers stop routing
// new clients here during shutdown.
func (c *Checker) Drain() { c.draining.Store(true) }

func (c *Checker) Instance() string { return c.instance }

// HandleHealth reports process liveness with the current room and
// connection totals.
func (c *Checker) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := c.now()
		rooms, conns := c.counts()

		resp := Response{
			Status:           "ok",
			Uptime:           int64(now.Sub(c.started).Seconds()),
			Timestamp:        now.UTC().Format(time.RFC3339Nano),
			ActiveRooms:      rooms,
			TotalConnections: conns,
			Instance:         c.instance,
		}
		if c.draining.Load() {
			resp.Status = "unhealthy"
			render.Status(r, http.StatusServiceUnavailable)
		}

		render.JSON(w, r, resp)
	}
}
