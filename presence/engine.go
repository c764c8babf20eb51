// Package presence implements the room join/leave/edit protocol on top of
// the room store and the connection registry.
//
// Every step that touches a room runs inside that room's lock. The events it
// causes are queued on the room and delivered once the lock is released, in
// the order the server applied them. Rooms never share a lock, and no lock
// is held while the emitter runs.
package presence

import (
	"livecodeshare-server/core"
	"livecodeshare-server/rooms"

	"github.com/sirupsen/logrus"
)

type (
	// Observer receives protocol counters. All methods must be cheap.
	Observer interface {
		ConnectionOpened()
		ConnectionClosed()
		Broadcast(event string, recipients int)
	}

	// Stats is a point-in-time snapshot for health reporting.
	Stats struct {
		Rooms       int
		Connections int
	}

	Engine struct {
		rooms    *rooms.Store
		conns    *Registry
		emitter  core.Emitter
		observer Observer
	}

	EngineOption func(*Engine)

	nopObserver struct{}
)

func (nopObserver) ConnectionOpened()     {}
func (nopObserver) ConnectionClosed()     {}
func (nopObserver) Broadcast(string, int) {}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func NewEngine(store *rooms.Store, registry *Registry, emitter core.Emitter, opts ...EngineOption) *Engine {
	e := &Engine{
		rooms:    store,
		conns:    registry,
		emitter:  emitter,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect admits a new connection.
func (e *Engine) Connect(id core.ConnectionID) {
	if !e.conns.Connect(id) {
		return
	}
	e.observer.ConnectionOpened()
	logrus.WithField("connection_id", id).Info("User connected")
}

// Disconnect leaves every room the connection joined and forgets it.
// Repeated calls are no-ops.
func (e *Engine) Disconnect(id core.ConnectionID) {
	joined, ok := e.conns.Disconnect(id)
	if !ok {
		return
	}
	for _, roomID := range joined {
		e.leave(id, roomID)
	}
	e.observer.ConnectionClosed()
	logrus.WithFields(logrus.Fields{
		"connection_id": id,
		"rooms":         len(joined),
	}).Info("User disconnected")
}

// Join adds the connection to the room, hands it the room state and tells
// the peers. It reports whether the connection joined; joining a room twice,
// or from an unregistered connection, is a no-op.
func (e *Engine) Join(id core.ConnectionID, roomID string) bool {
	log := logrus.WithFields(logrus.Fields{
		"connection_id": id,
		"room_id":       roomID,
	})

	joined := false
	e.withRoom(roomID, true, func(r *rooms.Room) {
		if r.HasMember(id) {
			log.Debug("join ignored: already a member")
			return
		}
		if !e.conns.AddRoom(id, roomID) {
			// The connection went away before its join was processed. The
			// room may have been created for it, so an empty room still
			// gets its cleanup armed.
			if r.MemberCount() == 0 {
				e.rooms.Cleanup().Schedule(r)
			}
			log.Debug("join ignored: connection not registered")
			return
		}

		r.AddMember(id)
		joined = true
		e.send(r, []core.ConnectionID{id}, core.EventRoomState, r.State())

		members := r.Members()
		e.send(r, others(members, id), core.EventUserJoined, core.UserJoined{UserID: id})
		e.send(r, members, core.EventUserCount, len(members))

		log.WithField("users", len(members)).Info("User joined room")
	})
	return joined
}

// Leave removes the connection from the room. Leaving a room the
// connection is not in is a no-op.
func (e *Engine) Leave(id core.ConnectionID, roomID string) {
	e.leave(id, roomID)
}

func (e *Engine) leave(id core.ConnectionID, roomID string) {
	e.withRoom(roomID, false, func(r *rooms.Room) {
		if !r.RemoveMember(id) {
			return
		}
		e.conns.RemoveRoom(id, roomID)

		remaining := r.Members()
		e.send(r, remaining, core.EventUserLeft, id)
		e.send(r, remaining, core.EventUserCount, len(remaining))

		logrus.WithFields(logrus.Fields{
			"connection_id": id,
			"room_id":       roomID,
			"users":         len(remaining),
		}).Info("User left room")

		if len(remaining) == 0 {
			e.rooms.Cleanup().Schedule(r)
		}
	})
}

// EditDocument replaces the room's text and forwards it to every other
// member. Edits from non-members are dropped; the result reports whether the
// edit was applied.
func (e *Engine) EditDocument(id core.ConnectionID, roomID, text string) bool {
	applied := false
	e.withRoom(roomID, false, func(r *rooms.Room) {
		if !r.HasMember(id) {
			logrus.WithFields(logrus.Fields{
				"connection_id": id,
				"room_id":       roomID,
			}).Debug("code change ignored: not a member")
			return
		}
		r.SetCode(text)
		applied = true
		e.send(r, others(r.Members(), id), core.EventCodeUpdate, text)
	})
	return applied
}

// EditLanguage replaces the room's language and forwards it to every other
// member. Changes from non-members are dropped.
func (e *Engine) EditLanguage(id core.ConnectionID, roomID, language string) bool {
	applied := false
	e.withRoom(roomID, false, func(r *rooms.Room) {
		if !r.HasMember(id) {
			logrus.WithFields(logrus.Fields{
				"connection_id": id,
				"room_id":       roomID,
			}).Debug("language change ignored: not a member")
			return
		}
		r.SetLanguage(language)
		applied = true
		e.send(r, others(r.Members(), id), core.EventLanguageUpdate, language)

		logrus.WithFields(logrus.Fields{
			"room_id":  roomID,
			"language": language,
		}).Info("Room language changed")
	})
	return applied
}

// Rooms returns the rooms a connection is currently in.
func (e *Engine) Rooms(id core.ConnectionID) []string {
	return e.conns.Rooms(id)
}

func (e *Engine) Stats() Stats {
	return Stats{
		Rooms:       e.rooms.Count(),
		Connections: e.conns.Count(),
	}
}

// withRoom runs fn under the room lock, then delivers whatever fn queued.
func (e *Engine) withRoom(roomID string, create bool, fn func(*rooms.Room)) {
	var room *rooms.Room
	run := func(r *rooms.Room) {
		room = r
		fn(r)
	}
	if create {
		e.rooms.GetOrCreate(roomID, run)
	} else {
		e.rooms.Get(roomID, run)
	}
	if room != nil {
		room.Flush(e.deliver)
	}
}

func (e *Engine) deliver(m rooms.Outbound) {
	e.emitter.Emit(m.To, m.Event, m.Payload)
}

// send queues event for every id in to. The caller holds r's lock.
func (e *Engine) send(r *rooms.Room, to []core.ConnectionID, event string, payload any) {
	if len(to) == 0 {
		return
	}
	r.Post(to, event, payload)
	e.observer.Broadcast(event, len(to))
}

func others(members []core.ConnectionID, self core.ConnectionID) []core.ConnectionID {
	out := make([]core.ConnectionID, 0, len(members))
	for _, id := range members {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}
