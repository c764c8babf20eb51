package stores

import (
	"fmt"

	"livecodeshare-server/core"
	"livecodeshare-server/stores/memory"
	"livecodeshare-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetRoomRegistry builds the room activity registry for the configured
// storage type.
func GetRoomRegistry(storageType, dataSourceName string) (core.RoomRegistry, error) {
	var (
		registry core.RoomRegistry
		err      error
	)

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		storageField["dataSourceName"] = dataSourceName
		registry, err = sqlite.NewRoomRegistry(dataSourceName)
		if err != nil {
			return nil, fmt.Errorf("sqlite room registry: %w", err)
		}
	case "", "memory":
		registry = memory.NewRoomRegistry()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", storageType)
	}

	logrus.WithFields(storageField).Info("Use storage")
	return registry, nil
}
