package database

import (
	"database/sql"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdc-transfer/internal/config"
	"xdc-transfer/internal/models"
)

func TestDSN(t *testing.T) {
	got := dsn(config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "xdc_transfer", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=xdc_transfer sslmode=disable", got)
}

func TestNotInitialized(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()

	assert.ErrorIs(t, SaveTransfer(models.TransferEvent{}), ErrNotInitialized)
	_, err := GetTransfers("", 10, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSaveTransferRejectsMalformedHash(t *testing.T) {
	saved := DB
	// sql.Open does not connect; the hash check runs before any query
	conn, err := sql.Open("postgres", dsn(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, DBName: "none", SSLMode: "disable"}))
	require.NoError(t, err)
	DB = conn
	defer func() {
		_ = conn.Close()
		DB = saved
	}()

	err = SaveTransfer(models.TransferEvent{ID: "t1", TxHash: "0x1234"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t1")
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.False(t, nullInt64(0).Valid)
	assert.Equal(t, int64(7), nullInt64(7).Int64)
}

// TestSaveAndGetTransfers runs against a real Postgres when TEST_DB_HOST is set.
func TestSaveAndGetTransfers(t *testing.T) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}
	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("TEST_DB_USER"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   os.Getenv("TEST_DB_NAME"),
		SSLMode:  "disable",
	}
	require.NoError(t, InitDB(cfg))
	defer Close()
	require.NoError(t, RunMigrations(cfg))

	from := "0x" + uuid.NewString()[:8] + "00000000000000000000000000000000"
	event := models.TransferEvent{
		ID:              uuid.NewString(),
		From:            from,
		To:              "0x0000000000000000000000000000000000000000",
		Amount:          "1.5",
		AmountBaseUnits: "1500000000000000000",
		Chain:           models.XDCApothem.Name,
		ChainID:         models.XDCApothem.ID,
		TxHash:          "0x" + strings.Repeat("ab", 32),
		BlockNumber:     12,
		Status:          models.StatusConfirmed,
		Timestamp:       time.Now().UTC(),
	}
	require.NoError(t, Emitter{}.EmitEvent(event))
	require.NoError(t, SaveTransfer(event))

	got, err := GetTransfers(from, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1500000000000000000", got[0].AmountBaseUnits)
	assert.Equal(t, int64(12), got[0].BlockNumber.Int64)
	assert.Equal(t, event.TxHash, got[0].View()["tx_hash"])
}
