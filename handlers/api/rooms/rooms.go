package rooms

import (
	"net/http"
	"sort"

	"livecodeshare-server/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	// Entry is one row of the room listing.
	Entry struct {
		ID         string `json:"id"`
		Users      int    `json:"users"`
		LastActive *int64 `json:"lastActive,omitempty"`
	}

	CreateRoomResponse struct {
		ID string `json:"id"`
	}

	// LiveRooms lists the rooms currently held in memory.
	LiveRooms interface {
		List() []core.RoomInfo
	}
)

// HandleList merges live rooms with the activity registry. Busy rooms come
// first, then the most recently active.
func HandleList(live LiveRooms, registry core.RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byID := make(map[string]*Entry)
		for _, info := range live.List() {
			byID[info.ID] = &Entry{ID: info.ID, Users: info.Users}
		}

		if registry != nil {
			stored, err := registry.ListRooms(r.Context())
			if err != nil {
				logrus.WithError(err).Warn("failed to list rooms from registry")
			}
			for _, room := range stored {
				entry, ok := byID[room.ID]
				if !ok {
					entry = &Entry{ID: room.ID}
					byID[room.ID] = entry
				}
				if room.LastActive > 0 {
					lastActive := room.LastActive
					entry.LastActive = &lastActive
				}
			}
		}

		list := make([]Entry, 0, len(byID))
		for _, entry := range byID {
			list = append(list, *entry)
		}
		sortEntries(list)

		render.JSON(w, r, list)
	}
}

func sortEntries(list []Entry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Users != list[j].Users {
			return list[i].Users > list[j].Users
		}
		li, lj := lastActive(list[i]), lastActive(list[j])
		if li != lj {
			return li > lj
		}
		return list[i].ID < list[j].ID
	})
}

func lastActive(e Entry) int64 {
	if e.LastActive == nil {
		return 0
	}
	return *e.LastActive
}

// HandleCreate mints a fresh room id. The room itself comes into being when
// the first client joins it.
func HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		logrus.WithField("room_id", id).Debug("Room id minted")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateRoomResponse{ID: id})
	}
}

// HandleDelete forgets a room's activity record. Live rooms are unaffected.
func HandleDelete(registry core.RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		if roomID == "" {
			http.Error(w, "Room id is required", http.StatusBadRequest)
			return
		}

		if err := registry.DeleteRoom(r.Context(), roomID); err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"error":   err,
			}).Error("Failed to delete room")
			http.Error(w, "Failed to delete room", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
