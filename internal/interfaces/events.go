package interfaces

import (
	"context"

	"xdc-transfer/internal/models"
)

// EventEmitter defines the interface for emitting settled transfer events
type EventEmitter interface {
	EmitEvent(event models.TransferEvent) error
}

// HeadSource reports the latest block number of a chain
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}
