// Package balance renders the native-token balance of an account.
package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/models"
	"xdc-transfer/internal/units"
)

// Source reads a balance in base units.
type Source interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Display is a balance ready for the page.
type Display struct {
	Address   string `json:"address"`
	BaseUnits string `json:"base_units"`
	Value     string `json:"value"`
	Symbol    string `json:"symbol"`
	Text      string `json:"text"`
}

type Reader struct {
	source Source
	chain  models.ChainInfo
	logger *zerolog.Logger
}

func NewReader(source Source, chain models.ChainInfo, logger *zerolog.Logger) *Reader {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reader{source: source, chain: chain, logger: logger}
}

// Read fetches and formats the balance of account.
func (r *Reader) Read(ctx context.Context, account common.Address) (Display, error) {
	wei, err := r.source.BalanceAt(ctx, account)
	if err != nil {
		r.logger.Error().Err(err).Str("address", account.Hex()).Msg("Failed to read balance")
		return Display{}, fmt.Errorf("read balance: %w", err)
	}

	value := units.FormatUnits(wei, r.chain.Decimals)
	return Display{
		Address:   account.Hex(),
		BaseUnits: wei.String(),
		Value:     value,
		Symbol:    r.chain.Symbol,
		Text:      fmt.Sprintf("%s %s", value, r.chain.Symbol),
	}, nil
}
