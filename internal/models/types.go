package models

import (
	"time"
)

// TransferStatus is the final outcome of a submitted transfer.
type TransferStatus string

const (
	StatusConfirmed TransferStatus = "confirmed"
	StatusFailed    TransferStatus = "failed"
)

// TransferEvent is emitted once per settled transfer.
type TransferEvent struct {
	ID              string         `json:"id"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	Amount          string         `json:"amount"`
	AmountBaseUnits string         `json:"amount_base_units"`
	Chain           string         `json:"chain"`
	ChainID         int64          `json:"chain_id"`
	TxHash          string         `json:"tx_hash,omitempty"`
	BlockNumber     uint64         `json:"block_number,omitempty"`
	Status          TransferStatus `json:"status"`
	ErrorKind       string         `json:"error_kind,omitempty"`
	Error           string         `json:"error,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	ExplorerURL     string         `json:"explorer_url,omitempty"`
}
