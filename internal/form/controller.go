package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"xdc-transfer/internal/metrics"
	"xdc-transfer/internal/scan"
	"xdc-transfer/internal/transfer"
)

// ErrSubmitDisabled is returned when submit is pressed without a connected
// signer or while a transfer is in flight. Nothing else happens.
var ErrSubmitDisabled = errors.New("submit is disabled")

// Submitter runs one transfer from form text to settlement.
type Submitter interface {
	Submit(ctx context.Context, signer transfer.Signer, destinationText, amountText string) (*transfer.Result, error)
}

// SignerSource returns the signer of the connected wallet, or nil.
type SignerSource interface {
	Signer() transfer.Signer
}

// Controller owns one form instance: its State, the scanner session holding
// the camera and the submit guard.
type Controller struct {
	submitter Submitter
	signers   SignerSource
	logger    *zerolog.Logger

	mu        sync.Mutex
	state     State
	scanner   *scan.Session
	listeners map[int]func(State)
	nextID    int
}

func NewController(submitter Submitter, signers SignerSource, logger *zerolog.Logger) *Controller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Controller{
		submitter: submitter,
		signers:   signers,
		logger:    logger,
		listeners: make(map[int]func(State)),
	}
}

// State returns a snapshot of the form.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive every new state. The returned func
// removes it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) EditDestination(text string) State {
	return c.apply(func(s State) State { return s.EditDestination(text) })
}

func (c *Controller) EditAmount(text string) State {
	return c.apply(func(s State) State { return s.EditAmount(text) })
}

// OpenScanner starts a scan session over stream. A session already open is
// closed first so only one holds the camera.
func (c *Controller) OpenScanner(stream scan.Stream) *scan.Session {
	session := scan.NewSession(stream, c.logger)

	c.mu.Lock()
	previous := c.scanner
	c.scanner = session
	c.state = c.state.OpenScanner()
	next, listeners := c.state, c.snapshotListeners()
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
		metrics.ScanSessions.WithLabelValues("replaced").Inc()
		c.logger.Debug().Uint64("session", previous.ID()).Msg("Closed previous scan session")
	}
	session.Start(c)
	c.logger.Debug().Uint64("session", session.ID()).Msg("Scanner opened")
	notify(listeners, next)
	return session
}

// CloseScanner releases the camera. Decode events that arrive afterwards
// are dropped.
func (c *Controller) CloseScanner() State {
	c.mu.Lock()
	session := c.scanner
	c.scanner = nil
	c.state = c.state.CloseScanner()
	next, listeners := c.state, c.snapshotListeners()
	c.mu.Unlock()

	if session != nil {
		session.Close()
		metrics.ScanSessions.WithLabelValues("closed").Inc()
		c.logger.Debug().Uint64("session", session.ID()).Msg("Scanner closed")
	}
	notify(listeners, next)
	return next
}

// EndScan closes the scanner only if sessionID is still the open session.
// The decode transport calls it when its stream goes away.
func (c *Controller) EndScan(sessionID uint64) {
	c.mu.Lock()
	current := c.scanner != nil && c.scanner.ID() == sessionID
	c.mu.Unlock()
	if current {
		c.CloseScanner()
	}
}

// ScanAccepted implements scan.Handler.
func (c *Controller) ScanAccepted(sessionID uint64, text string) {
	if !c.takeSession(sessionID) {
		c.logger.Debug().Uint64("session", sessionID).Msg("Dropping late scan result")
		return
	}
	metrics.ScanSessions.WithLabelValues("accepted").Inc()
	c.apply(func(s State) State { return s.AcceptScanCandidate(text) })
}

// ScanFailed implements scan.Handler.
func (c *Controller) ScanFailed(sessionID uint64, err error) {
	if !c.takeSession(sessionID) {
		return
	}
	metrics.ScanSessions.WithLabelValues("failed").Inc()
	c.logger.Warn().Err(err).Uint64("session", sessionID).Msg("Scanner failed")
	c.apply(func(s State) State { return s.ScanFailed(scanMessage(err)) })
}

// takeSession detaches the session with sessionID if it is current.
func (c *Controller) takeSession(sessionID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanner == nil || c.scanner.ID() != sessionID {
		return false
	}
	c.scanner = nil
	return true
}

// Submit sends the form's transfer. Without a signer, or with a transfer
// already in flight, it returns ErrSubmitDisabled and changes nothing.
// Otherwise the form is settled exactly once when the submitter returns,
// including when it panics.
func (c *Controller) Submit(ctx context.Context) (res *transfer.Result, err error) {
	var signer transfer.Signer
	if c.signers != nil {
		signer = c.signers.Signer()
	}

	c.mu.Lock()
	if signer == nil || c.state.Submitting {
		c.mu.Unlock()
		return nil, ErrSubmitDisabled
	}
	destination, amount := c.state.DestinationText, c.state.AmountText
	c.state = c.state.BeginSubmit()
	next, listeners := c.state, c.snapshotListeners()
	c.mu.Unlock()
	notify(listeners, next)

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
		c.settle(err)
		if r != nil {
			panic(r)
		}
	}()

	return c.submitter.Submit(ctx, signer, destination, amount)
}

func (c *Controller) settle(err error) {
	c.apply(func(s State) State {
		if err == nil {
			return s.SettleSuccess()
		}
		return s.SettleFailure(transfer.UserMessage(err), fieldFor(err))
	})
}

func (c *Controller) apply(fn func(State) State) State {
	c.mu.Lock()
	c.state = fn(c.state)
	next, listeners := c.state, c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, next)
	return next
}

func (c *Controller) snapshotListeners() []func(State) {
	if len(c.listeners) == 0 {
		return nil
	}
	out := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}

func fieldFor(err error) Field {
	switch transfer.KindOf(err) {
	case transfer.KindInvalidDestination:
		return FieldDestination
	case transfer.KindInvalidAmount:
		return FieldAmount
	default:
		return FieldSubmit
	}
}

func scanMessage(err error) string {
	var camErr *scan.CameraError
	if errors.As(err, &camErr) {
		return "Camera unavailable: " + camErr.Reason
	}
	return "Camera unavailable."
}
