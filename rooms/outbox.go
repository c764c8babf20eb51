package rooms

import "livecodeshare-server/core"

// Outbound is one event addressed to one connection.
type Outbound struct {
	To      core.ConnectionID
	Event   string
	Payload any
}

// Post queues an event for every id in to. The caller holds the room lock;
// nothing is sent until Flush.
func (r *Room) Post(to []core.ConnectionID, event string, payload any) {
	for _, id := range to {
		r.outbox = append(r.outbox, Outbound{To: id, Event: event, Payload: payload})
	}
}

// Flush hands queued events to deliver in the order they were posted, with
// the room lock released. One goroutine delivers for a room at a time: a
// Flush that finds delivery under way, including one re-entered from
// deliver, returns at once and the active deliverer picks up its events.
// The caller must not hold the room lock.
func (r *Room) Flush(deliver func(Outbound)) {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	for len(r.outbox) > 0 {
		batch := r.outbox
		r.outbox = nil
		r.mu.Unlock()

		for _, m := range batch {
			deliver(m)
		}

		r.mu.Lock()
	}
	r.flushing = false
	r.mu.Unlock()
}
