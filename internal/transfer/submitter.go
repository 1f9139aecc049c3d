// Package transfer validates, dispatches and tracks a single native-value
// transfer through a connected wallet.
package transfer

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/interfaces"
	"xdc-transfer/internal/metrics"
	"xdc-transfer/internal/models"
)

// Signer is the connected wallet's authority to send from its account.
// SendValueTransfer returns once the transaction is accepted for broadcast.
type Signer interface {
	Account() common.Address
	SendValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
}

// ChainReporter is implemented by signers that can tell which chain the
// wallet will send on. The submitter refuses to dispatch when it differs
// from the chain it watches for confirmation.
type ChainReporter interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Watcher blocks until a broadcast transaction is included.
type Watcher interface {
	WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// State is the submitter's position in the workflow.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateDispatching
	StateAwaitingConfirmation
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result describes a confirmed transfer.
type Result struct {
	Request Request
	TxHash  common.Hash
	Receipt *types.Receipt
	Event   models.TransferEvent
}

// Submitter runs at most one transfer at a time.
type Submitter struct {
	watcher             Watcher
	emitter             interfaces.EventEmitter
	chain               models.ChainInfo
	confirmationTimeout time.Duration
	logger              *zerolog.Logger

	// OnTransition, when set, observes every state change in order.
	OnTransition func(State)

	inFlight atomic.Bool
	state    atomic.Int32
	now      func() time.Time
}

func NewSubmitter(watcher Watcher, emitter interfaces.EventEmitter, chain models.ChainInfo, confirmationTimeout time.Duration, logger *zerolog.Logger) *Submitter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Submitter{
		watcher:             watcher,
		emitter:             emitter,
		chain:               chain,
		confirmationTimeout: confirmationTimeout,
		logger:              logger,
		now:                 time.Now,
	}
}

// State returns the current workflow state.
func (s *Submitter) State() State {
	return State(s.state.Load())
}

// InFlight reports whether a submit is running.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Submit validates the form text, sends the transfer with signer and waits
// for confirmation. A nil signer or a submit already in flight returns
// ErrNoSigner or ErrBusy without any other effect.
func (s *Submitter) Submit(ctx context.Context, signer Signer, destinationText, amountText string) (*Result, error) {
	if signer == nil {
		return nil, newError(KindNoSigner, "submit", nil)
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, newError(KindBusy, "submit", nil)
	}
	defer s.inFlight.Store(false)
	defer s.transition(StateIdle)

	s.transition(StateValidating)
	req, err := NewRequest(destinationText, amountText)
	if err != nil {
		metrics.TransfersRejected.WithLabelValues(string(KindOf(err))).Inc()
		s.logger.Debug().Err(err).Str("destination", destinationText).Str("amount", amountText).Msg("Transfer rejected by validation")
		return nil, err
	}

	if err := s.checkChain(ctx, signer); err != nil {
		metrics.TransfersRejected.WithLabelValues(string(KindOf(err))).Inc()
		s.logger.Warn().Err(err).Str("chain", s.chain.Name).Msg("Transfer refused before dispatch")
		return nil, err
	}

	from := signer.Account()
	started := s.now()
	s.transition(StateDispatching)
	metrics.TransfersDispatched.Inc()
	s.logger.Info().
		Str("from", from.Hex()).
		Str("to", req.Destination().Hex()).
		Str("amount", req.Amount()).
		Str("chain", s.chain.Name).
		Msg("Dispatching transfer")

	hash, err := s.dispatch(ctx, signer, req)
	if err != nil {
		terr := classifyDispatch(err)
		s.settle(from, req, common.Hash{}, nil, terr, started)
		return nil, terr
	}

	s.transition(StateAwaitingConfirmation)
	s.logger.Info().Str("txHash", hash.Hex()).Msg("Transfer accepted for broadcast, awaiting confirmation")

	receipt, err := s.wait(ctx, hash)
	if err != nil {
		terr := classifyConfirmation(err)
		s.settle(from, req, hash, nil, terr, started)
		return nil, terr
	}

	event := s.settle(from, req, hash, receipt, nil, started)
	return &Result{Request: req, TxHash: hash, Receipt: receipt, Event: event}, nil
}

// checkChain asks the wallet for its current chain right before dispatch.
func (s *Submitter) checkChain(ctx context.Context, signer Signer) error {
	reporter, ok := signer.(ChainReporter)
	if !ok {
		return nil
	}
	id, err := reporter.ChainID(ctx)
	if err != nil {
		return newError(KindTransportFailure, "check wallet chain", err)
	}
	if id == nil || id.Int64() != s.chain.ID {
		return newError(KindWrongChain, "check wallet chain",
			fmt.Errorf("wallet is on chain %v, transfers are confirmed on %s (%d)", id, s.chain.Name, s.chain.ID))
	}
	return nil
}

func (s *Submitter) dispatch(ctx context.Context, signer Signer, req Request) (hash common.Hash, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signer panicked: %v", r)
		}
	}()
	return signer.SendValueTransfer(ctx, req.Destination(), req.AmountBaseUnits())
}

func (s *Submitter) wait(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("confirmation watcher panicked: %v", r)
		}
	}()
	if s.watcher == nil {
		return nil, fmt.Errorf("no confirmation watcher configured")
	}
	if s.confirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.confirmationTimeout)
		defer cancel()
	}
	return s.watcher.WaitForConfirmation(ctx, hash)
}

func (s *Submitter) settle(from common.Address, req Request, hash common.Hash, receipt *types.Receipt, terr *Error, started time.Time) models.TransferEvent {
	s.transition(StateSettled)
	metrics.SettleDuration.Observe(s.now().Sub(started).Seconds())

	event := models.TransferEvent{
		ID:              uuid.NewString(),
		From:            from.Hex(),
		To:              req.Destination().Hex(),
		Amount:          req.Amount(),
		AmountBaseUnits: req.AmountBaseUnits().String(),
		Chain:           s.chain.Name,
		ChainID:         s.chain.ID,
		Status:          models.StatusConfirmed,
		Timestamp:       s.now().UTC(),
	}
	if hash != (common.Hash{}) {
		event.TxHash = hash.Hex()
		event.ExplorerURL = s.chain.TxURL(event.TxHash)
	}
	if receipt != nil && receipt.BlockNumber != nil {
		event.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if terr != nil {
		event.Status = models.StatusFailed
		event.ErrorKind = string(terr.Kind)
		event.Error = terr.Error()
		metrics.TransfersSettled.WithLabelValues(string(terr.Kind)).Inc()
		s.logger.Error().
			Err(terr.Err).
			Str("kind", string(terr.Kind)).
			Str("to", event.To).
			Str("amount", event.Amount).
			Str("txHash", event.TxHash).
			Msg("Transfer failed")
	} else {
		metrics.TransfersSettled.WithLabelValues(string(models.StatusConfirmed)).Inc()
		s.logger.Info().
			Str("to", event.To).
			Str("amount", event.Amount).
			Str("txHash", event.TxHash).
			Uint64("blockNumber", event.BlockNumber).
			Str("explorer", event.ExplorerURL).
			Msg("Transfer confirmed")
	}

	if s.emitter != nil {
		if err := s.emitter.EmitEvent(event); err != nil {
			s.logger.Error().Err(err).Str("id", event.ID).Msg("Error emitting transfer event")
		}
	}
	return event
}

func (s *Submitter) transition(next State) {
	s.state.Store(int32(next))
	if s.OnTransition != nil {
		s.OnTransition(next)
	}
}
