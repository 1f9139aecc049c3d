package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"xdc-transfer/internal/units"
	"xdc-transfer/internal/validation"
)

// Request is a validated native-value transfer. It can only be built by
// NewRequest and exposes copies of its fields.
type Request struct {
	destination common.Address
	amount      *big.Int
}

// NewRequest validates destination and amount text and builds a Request.
func NewRequest(destinationText, amountText string) (Request, error) {
	if err := validation.ValidateAddress(destinationText); err != nil {
		return Request{}, newError(KindInvalidDestination, "validate destination", err)
	}
	amount, err := units.ToBaseUnits(amountText)
	if err != nil {
		return Request{}, newError(KindInvalidAmount, "validate amount", err)
	}
	return Request{
		destination: common.HexToAddress(destinationText),
		amount:      amount,
	}, nil
}

func (r Request) Destination() common.Address {
	return r.destination
}

// AmountBaseUnits returns a copy of the amount in base units.
func (r Request) AmountBaseUnits() *big.Int {
	if r.amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.amount)
}

// Amount renders the amount in the native unit.
func (r Request) Amount() string {
	return units.FromBaseUnits(r.amount)
}
