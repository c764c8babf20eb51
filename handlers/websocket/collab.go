package websocket

import (
	"fmt"
	"time"

	"livecodeshare-server/core"
	"livecodeshare-server/presence"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type (
	// Options are the transport settings of the socket.io server.
	Options struct {
		PingTimeout       time.Duration
		PingInterval      time.Duration
		MaxHttpBufferSize int64
		// CORSOrigins lists allowed origins; empty or "*" allows any.
		CORSOrigins []string
	}

	// Handler routes socket.io events into the presence engine.
	Handler struct {
		engine   *presence.Engine
		activity *ActivityRecorder
		sockets  *SocketEmitter
	}

	roomRef struct {
		RoomID string `mapstructure:"roomId"`
	}
)

// NewServer builds a socket.io server: websocket first, long-polling as the
// fallback, oversized frames rejected by the transport.
func NewServer(o Options) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetPingTimeout(o.PingTimeout)
	opts.SetPingInterval(o.PingInterval)
	opts.SetMaxHttpBufferSize(o.MaxHttpBufferSize)
	opts.SetTransports(types.NewSet("websocket", "polling"))
	origin := corsOrigin(o.CORSOrigins)
	opts.SetCors(&types.Cors{
		Origin:      origin,
		Methods:     []string{"GET", "POST"},
		Credentials: origin != "*",
	})
	return socketio.NewServer(nil, opts)
}

func corsOrigin(origins []string) any {
	if len(origins) == 0 {
		return "*"
	}
	out := make([]any, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		out = append(out, o)
	}
	return out
}

func NewHandler(engine *presence.Engine, activity *ActivityRecorder) *Handler {
	return &Handler{engine: engine, activity: activity}
}

// Bind installs the connection handler on srv. sockets is the emitter the
// engine sends through; each connection's queue lives as long as the socket.
func (h *Handler) Bind(srv *socketio.Server, sockets *SocketEmitter) {
	h.sockets = sockets

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.serve(socket)
	})
}

func (h *Handler) serve(socket *socketio.Socket) {
	me := core.ConnectionID(socket.Id())
	if h.sockets != nil {
		h.sockets.Open(me)
	}
	h.engine.Connect(me)

	for _, event := range []string{
		core.EventJoinRoom,
		core.EventLeaveRoom,
		core.EventCodeChange,
		core.EventLanguageChange,
	} {
		event := event
		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(event, func(datas ...any) {
			h.dispatch(me, event, datas)
		})
	}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("error", func(datas ...any) {
		logrus.WithFields(logrus.Fields{
			"connection_id": me,
			"error":         fmt.Sprint(datas...),
		}).Error("Socket error")
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnect", func(datas ...any) {
		h.engine.Disconnect(me)
		if h.sockets != nil {
			h.sockets.Close(me)
		}
		socket.RemoveAllListeners("")
	})
}

// dispatch applies one client event. Malformed payloads are dropped, and
// only events the engine applied count as room activity.
func (h *Handler) dispatch(me core.ConnectionID, event string, datas []any) {
	log := logrus.WithFields(logrus.Fields{
		"connection_id": me,
		"event":         event,
	})

	switch event {
	case core.EventJoinRoom:
		roomID, err := parseRoomID(datas)
		if err != nil {
			log.WithError(err).Debug("dropping malformed event")
			return
		}
		if h.engine.Join(me, roomID) {
			h.touch(roomID)
		}

	case core.EventLeaveRoom:
		roomID, err := parseRoomID(datas)
		if err != nil {
			log.WithError(err).Debug("dropping malformed event")
			return
		}
		h.engine.Leave(me, roomID)

	case core.EventCodeChange:
		var msg core.CodeChange
		if err := decodeFirst(datas, &msg); err != nil || msg.RoomID == "" {
			log.WithError(err).Debug("dropping malformed event")
			return
		}
		if h.engine.EditDocument(me, msg.RoomID, msg.Code) {
			h.touch(msg.RoomID)
		}

	case core.EventLanguageChange:
		var msg core.LanguageChange
		if err := decodeFirst(datas, &msg); err != nil || msg.RoomID == "" || msg.Language == "" {
			log.WithError(err).Debug("dropping malformed event")
			return
		}
		if h.engine.EditLanguage(me, msg.RoomID, msg.Language) {
			h.touch(msg.RoomID)
		}
	}
}

func (h *Handler) touch(roomID string) {
	if h.activity != nil {
		h.activity.Touch(roomID)
	}
}

// parseRoomID accepts either a bare room id or {roomId: ...}.
func parseRoomID(datas []any) (string, error) {
	if len(datas) == 0 {
		return "", fmt.Errorf("room id is required")
	}
	if id, ok := datas[0].(string); ok {
		if id == "" {
			return "", fmt.Errorf("invalid room id")
		}
		return id, nil
	}

	var ref roomRef
	if err := decodeFirst(datas, &ref); err != nil {
		return "", err
	}
	if ref.RoomID == "" {
		return "", fmt.Errorf("invalid room id")
	}
	return ref.RoomID, nil
}

func decodeFirst(datas []any, out any) error {
	if len(datas) == 0 {
		return fmt.Errorf("payload is required")
	}
	if _, ok := datas[0].(map[string]any); !ok {
		return fmt.Errorf("payload must be an object, got %T", datas[0])
	}
	return mapstructure.Decode(datas[0], out)
}
