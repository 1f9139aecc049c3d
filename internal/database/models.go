package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"xdc-transfer/internal/models"
	"xdc-transfer/internal/validation"
)

// ErrNotInitialized is returned when the history store is used without InitDB.
var ErrNotInitialized = errors.New("database not initialized")

// Transfer represents a settled transfer in the database
type Transfer struct {
	ID              string                `json:"id"`
	Chain           string                `json:"chain"`
	ChainID         int64                 `json:"chain_id"`
	FromAddress     string                `json:"from_address"`
	ToAddress       string                `json:"to_address"`
	Amount          string                `json:"amount"`
	AmountBaseUnits string                `json:"amount_base_units"`
	TxHash          sql.NullString        `json:"-"`
	BlockNumber     sql.NullInt64         `json:"-"`
	Status          models.TransferStatus `json:"status"`
	ErrorKind       sql.NullString        `json:"-"`
	ExplorerURL     sql.NullString        `json:"-"`
	Timestamp       time.Time             `json:"timestamp"`
	CreatedAt       time.Time             `json:"created_at"`
}

// SaveTransfer saves a settled transfer to the database
func SaveTransfer(event models.TransferEvent) error {
	if DB == nil {
		return ErrNotInitialized
	}
	if event.TxHash != "" {
		if err := validation.ValidateTxHash(event.TxHash); err != nil {
			return fmt.Errorf("transfer %s: %w", event.ID, err)
		}
	}
	_, err := DB.Exec(`
		INSERT INTO transfers (id, chain, chain_id, from_address, to_address, amount, amount_base_units,
			tx_hash, block_number, status, error_kind, error, explorer_url, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.Chain, event.ChainID, event.From, event.To, event.Amount, event.AmountBaseUnits,
		nullString(event.TxHash), nullInt64(event.BlockNumber), string(event.Status),
		nullString(event.ErrorKind), nullString(event.Error), nullString(event.ExplorerURL), event.Timestamp)
	return err
}

// GetTransfers retrieves transfers sent from address, newest first. An
// empty address returns every transfer.
func GetTransfers(address string, limit, offset int) ([]Transfer, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	rows, err := DB.Query(`
		SELECT id, chain, chain_id, from_address, to_address, amount, amount_base_units::text,
			tx_hash, block_number, status, error_kind, explorer_url, timestamp, created_at
		FROM transfers
		WHERE $1 = '' OR LOWER(from_address) = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, strings.ToLower(address), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		err := rows.Scan(&t.ID, &t.Chain, &t.ChainID, &t.FromAddress, &t.ToAddress, &t.Amount, &t.AmountBaseUnits,
			&t.TxHash, &t.BlockNumber, &t.Status, &t.ErrorKind, &t.ExplorerURL, &t.Timestamp, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// View flattens the nullable columns for JSON responses.
func (t Transfer) View() map[string]interface{} {
	v := map[string]interface{}{
		"id":                t.ID,
		"chain":             t.Chain,
		"chain_id":          t.ChainID,
		"from":              t.FromAddress,
		"to":                t.ToAddress,
		"amount":            t.Amount,
		"amount_base_units": t.AmountBaseUnits,
		"status":            t.Status,
		"timestamp":         t.Timestamp,
	}
	if t.TxHash.Valid {
		v["tx_hash"] = t.TxHash.String
	}
	if t.BlockNumber.Valid {
		v["block_number"] = t.BlockNumber.Int64
	}
	if t.ErrorKind.Valid {
		v["error_kind"] = t.ErrorKind.String
	}
	if t.ExplorerURL.Valid {
		v["explorer_url"] = t.ExplorerURL.String
	}
	return v
}

// Emitter stores every settled transfer
type Emitter struct{}

func (Emitter) EmitEvent(event models.TransferEvent) error {
	return SaveTransfer(event)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n uint64) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
