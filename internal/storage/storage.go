package storage

import "liquidityCore/internal/model"

// Storage defines a sink for engine events.
type Storage interface {
	PutEventBatch(events []model.Event) error
}
