package events

import (
	"errors"

	"github.com/rs/zerolog"

	"xdc-transfer/internal/interfaces"
	"xdc-transfer/internal/models"
)

// LogEmitter wraps another emitter and logs every settled transfer
type LogEmitter struct {
	WrappedEmitter interfaces.EventEmitter
	Logger         *zerolog.Logger
}

// EmitEvent logs the transfer and forwards it to the wrapped emitter
func (d *LogEmitter) EmitEvent(event models.TransferEvent) error {
	if d.Logger != nil {
		e := d.Logger.Info()
		if event.Status == models.StatusFailed {
			e = d.Logger.Warn().Str("errorKind", event.ErrorKind).Str("error", event.Error)
		}
		e.Str("id", event.ID).
			Str("chain", event.Chain).
			Str("from", event.From).
			Str("to", event.To).
			Str("amount", event.Amount).
			Str("txHash", event.TxHash).
			Str("status", string(event.Status)).
			Time("timestamp", event.Timestamp).
			Msg("Transfer details")

		if event.ExplorerURL != "" {
			d.Logger.Info().
				Str("chain", event.Chain).
				Str("explorer", event.ExplorerURL).
				Msg("Chain-specific information")
		}
	}

	// Forward to wrapped emitter
	if d.WrappedEmitter != nil {
		return d.WrappedEmitter.EmitEvent(event)
	}
	return nil
}

// Multi sends every event to all emitters and joins their errors
type Multi []interfaces.EventEmitter

func (m Multi) EmitEvent(event models.TransferEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.EmitEvent(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
