package websocket

import (
	"sync"

	"livecodeshare-server/core"

	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const defaultSendQueue = 256

type (
	outbound struct {
		event   string
		payload any
	}

	sendFunc func(to core.ConnectionID, event string, payload any) error

	// SocketEmitter gives every open connection its own send queue and
	// writer goroutine, so Emit never waits on a socket. Events for a
	// connection leave in the order they were emitted; when a queue is full
	// the event is dropped.
	SocketEmitter struct {
		mu     sync.RWMutex
		queues map[core.ConnectionID]chan outbound
		size   int
		send   sendFunc
	}
)

// NewEmitter addresses each connection through the room socket.io puts
// every socket in, named after its id.
func NewEmitter(srv *socketio.Server) *SocketEmitter {
	return newSocketEmitter(func(to core.ConnectionID, event string, payload any) error {
		return srv.To(socketio.Room(to)).Emit(event, payload)
	}, defaultSendQueue)
}

func newSocketEmitter(send sendFunc, size int) *SocketEmitter {
	if size <= 0 {
		size = defaultSendQueue
	}
	return &SocketEmitter{
		queues: make(map[core.ConnectionID]chan outbound),
		size:   size,
		send:   send,
	}
}

// Open starts the writer for id. Events for ids that are not open are
// discarded.
func (e *SocketEmitter) Open(id core.ConnectionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.queues[id]; ok {
		return
	}
	q := make(chan outbound, e.size)
	e.queues[id] = q
	go e.write(id, q)
}

// Close stops the writer for id once its queue is drained.
func (e *SocketEmitter) Close(id core.ConnectionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if q, ok := e.queues[id]; ok {
		close(q)
		delete(e.queues, id)
	}
}

func (e *SocketEmitter) Emit(to core.ConnectionID, event string, payload any) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	q, ok := e.queues[to]
	if !ok {
		return
	}
	select {
	case q <- outbound{event: event, payload: payload}:
	default:
		logrus.WithFields(logrus.Fields{
			"connection_id": to,
			"event":         event,
		}).Warn("send queue full, dropping event")
	}
}

func (e *SocketEmitter) write(id core.ConnectionID, q <-chan outbound) {
	for m := range q {
		if err := e.send(id, m.event, m.payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"connection_id": id,
				"event":         m.event,
				"error":         err,
			}).Debug("emit failed")
		}
	}
}
