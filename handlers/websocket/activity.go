package websocket

import (
	"context"
	"time"

	"livecodeshare-server/core"

	"github.com/sirupsen/logrus"
)

const touchTimeout = 2 * time.Second

// ActivityRecorder records room activity off the event path. Touches are
// queued and written by Run; a full queue drops the touch.
type ActivityRecorder struct {
	registry core.RoomRegistry
	queue    chan string
}

func NewActivityRecorder(registry core.RoomRegistry, size int) *ActivityRecorder {
	if size <= 0 {
		size = 256
	}
	return &ActivityRecorder{
		registry: registry,
		queue:    make(chan string, size),
	}
}

func (a *ActivityRecorder) Touch(roomID string) {
	select {
	case a.queue <- roomID:
	default:
		logrus.WithField("room_id", roomID).Debug("activity queue full, dropping touch")
	}
}

// Run drains the queue until ctx is done.
func (a *ActivityRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case roomID := <-a.queue:
			a.write(ctx, roomID)
		}
	}
}

func (a *ActivityRecorder) write(ctx context.Context, roomID string) {
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	if err := a.registry.TouchRoom(ctx, roomID); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"error":   err,
		}).Warn("failed to record room activity")
	}
}
