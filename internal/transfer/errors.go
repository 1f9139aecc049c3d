package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Kind classifies why a submit did not produce a confirmed transfer.
type Kind string

const (
	KindNoSigner            Kind = "NO_SIGNER"
	KindBusy                Kind = "BUSY"
	KindInvalidDestination  Kind = "INVALID_DESTINATION"
	KindInvalidAmount       Kind = "INVALID_AMOUNT"
	KindUserRejected        Kind = "USER_REJECTED_SIGNATURE"
	KindTransportFailure    Kind = "TRANSPORT_FAILURE"
	KindConfirmationTimeout Kind = "CONFIRMATION_TIMEOUT"
	KindReverted            Kind = "REVERTED"
	KindWrongChain          Kind = "WRONG_CHAIN"
)

// Sentinels for errors.Is; an *Error matches the sentinel of its Kind.
var (
	ErrNoSigner            = &Error{Kind: KindNoSigner}
	ErrBusy                = &Error{Kind: KindBusy}
	ErrInvalidDestination  = &Error{Kind: KindInvalidDestination}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrUserRejected        = &Error{Kind: KindUserRejected}
	ErrTransportFailure    = &Error{Kind: KindTransportFailure}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmationTimeout}
	ErrReverted            = &Error{Kind: KindReverted}
	ErrWrongChain          = &Error{Kind: KindWrongChain}
)

// ErrTransactionReverted is returned by watchers for an included
// transaction whose receipt status is failure.
var ErrTransactionReverted = errors.New("transaction reverted")

// userRejectedCode is the EIP-1193 "user rejected the request" code.
const userRejectedCode = 4001

// Error is the submitter's error type.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err, or "" when err is not a transfer error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsLocal reports whether err was raised before anything reached the signer.
func IsLocal(err error) bool {
	switch KindOf(err) {
	case KindNoSigner, KindBusy, KindInvalidDestination, KindInvalidAmount, KindWrongChain:
		return true
	}
	return false
}

// UserMessage is the short text shown in the form for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case "":
		if err == nil {
			return ""
		}
		return "Transaction failed."
	case KindNoSigner:
		return "Connect a wallet first."
	case KindBusy:
		return "A transfer is already in progress."
	case KindInvalidDestination:
		return "Invalid destination address."
	case KindInvalidAmount:
		return "Invalid amount."
	case KindWrongChain:
		return "Wallet is connected to a different network."
	case KindUserRejected:
		return "Transaction was rejected in the wallet."
	case KindConfirmationTimeout:
		return "Transaction was not confirmed in time."
	case KindReverted:
		return "Transaction failed on chain."
	default:
		return "Transaction failed."
	}
}

// classifyDispatch maps a signer failure to the taxonomy.
func classifyDispatch(err error) *Error {
	if isUserRejection(err) {
		return newError(KindUserRejected, "send transaction", err)
	}
	return newError(KindTransportFailure, "send transaction", err)
}

// classifyConfirmation maps a watcher failure to the taxonomy.
func classifyConfirmation(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindConfirmationTimeout, "wait for confirmation", err)
	case errors.Is(err, ErrTransactionReverted):
		return newError(KindReverted, "wait for confirmation", err)
	default:
		return newError(KindTransportFailure, "wait for confirmation", err)
	}
}

func isUserRejection(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "request denied")
}
