package rooms

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultGracePeriod is how long an empty room survives before it is reaped.
const DefaultGracePeriod = 10 * time.Second

type (
	// Timer is the part of *time.Timer the scheduler needs.
	Timer interface {
		Stop() bool
	}

	// Clock creates timers. Tests swap it for a manual clock.
	Clock interface {
		AfterFunc(d time.Duration, f func()) Timer
	}

	realClock struct{}

	// pendingCleanup is the cancellation token stored on a Room. A fired timer
	// only reaps the room if the room still carries the same token.
	pendingCleanup struct {
		timer Timer
	}

	// Scheduler arms and disarms deferred deletion of empty rooms.
	Scheduler struct {
		delay time.Duration
		clock Clock
		fire  func(roomID string, token *pendingCleanup)
	}
)

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Schedule arms a cleanup for r unless one is already pending. The caller
// holds r's lock.
func (s *Scheduler) Schedule(r *Room) {
	if r.pending != nil {
		return
	}
	token := &pendingCleanup{}
	roomID := r.ID
	token.timer = s.clock.AfterFunc(s.delay, func() {
		s.fire(roomID, token)
	})
	r.pending = token

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"delay":   s.delay.String(),
	}).Info("Room is empty, cleanup scheduled")
}

// Cancel disarms a pending cleanup for r, if any. The caller holds r's lock.
func (s *Scheduler) Cancel(r *Room) {
	if r.pending == nil {
		return
	}
	r.pending.timer.Stop()
	r.pending = nil

	logrus.WithField("room_id", r.ID).Info("Room cleanup cancelled")
}

// Delay returns the grace period.
func (s *Scheduler) Delay() time.Duration { return s.delay }
