package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"livecodeshare-server/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

type roomRegistry struct {
	db  *sql.DB
	now func() time.Time
}

// NewRoomRegistry opens the database and makes sure the room_activity table
// exists. Only room ids and timestamps are stored.
func NewRoomRegistry(dataSourceName string) (core.RoomRegistry, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	activityTable := `CREATE TABLE IF NOT EXISTS room_activity (
		room_id TEXT PRIMARY KEY,
		last_active INTEGER NOT NULL
	);`
	if _, err = db.Exec(activityTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create room_activity table: %w", err)
	}

	return &roomRegistry{db: db, now: time.Now}, nil
}

func (s *roomRegistry) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	lastActive := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_activity (room_id, last_active) VALUES (?, ?) ON CONFLICT(room_id) DO UPDATE SET last_active = excluded.last_active",
		roomID, lastActive)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"error":   err,
		}).Error("Failed to touch room")
		return err
	}
	return nil
}

func (s *roomRegistry) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT room_id, last_active FROM room_activity ORDER BY last_active DESC, room_id ASC")
	if err != nil {
		logrus.WithField("error", err).Error("Failed to list rooms")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close room rows")
		}
	}()

	rooms := make([]core.Room, 0)
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.ID, &room.LastActive); err != nil {
			logrus.WithField("error", err).Error("Failed to scan room")
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *roomRegistry) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM room_activity WHERE room_id = ?", roomID); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"error":   err,
		}).Error("Failed to delete room")
		return err
	}
	return nil
}

// Close releases the database handle.
func (s *roomRegistry) Close() error {
	return s.db.Close()
}
