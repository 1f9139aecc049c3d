// Package form holds the transfer form's state and the controller that
// drives it from user actions, scan sessions and the submitter.
package form

import "strings"

// Field names the input an error message belongs to.
type Field string

const (
	FieldNone        Field = ""
	FieldDestination Field = "destination"
	FieldAmount      Field = "amount"
	FieldScan        Field = "scan"
	FieldSubmit      Field = "submit"
)

// State is the transfer form. Every method returns the next state and
// leaves the receiver untouched.
type State struct {
	DestinationText string `json:"destination"`
	AmountText      string `json:"amount"`
	ScannerOpen     bool   `json:"scanner_open"`
	ErrorText       string `json:"error,omitempty"`
	ErrorField      Field  `json:"error_field,omitempty"`
	Submitting      bool   `json:"submitting"`
}

// EditDestination replaces the destination text. An error attached to the
// destination is cleared.
func (s State) EditDestination(text string) State {
	s.DestinationText = text
	if s.ErrorField == FieldDestination {
		s = s.clearError()
	}
	return s
}

func (s State) EditAmount(text string) State {
	s.AmountText = text
	if s.ErrorField == FieldAmount {
		s = s.clearError()
	}
	return s
}

// OpenScanner shows the scanner and clears any scan error.
func (s State) OpenScanner() State {
	s.ScannerOpen = true
	if s.ErrorField == FieldScan {
		s = s.clearError()
	}
	return s
}

func (s State) CloseScanner() State {
	s.ScannerOpen = false
	if s.ErrorField == FieldScan {
		s = s.clearError()
	}
	return s
}

// AcceptScanCandidate takes a decoded value as the new destination, closes
// the scanner and clears the error.
func (s State) AcceptScanCandidate(text string) State {
	s.DestinationText = strings.TrimSpace(text)
	s.ScannerOpen = false
	return s.clearError()
}

// ScanFailed closes the scanner and shows a camera error.
func (s State) ScanFailed(message string) State {
	s.ScannerOpen = false
	s.ErrorText = message
	s.ErrorField = FieldScan
	return s
}

func (s State) BeginSubmit() State {
	s.Submitting = true
	return s.clearError()
}

// SettleSuccess resets the form.
func (s State) SettleSuccess() State {
	s.DestinationText = ""
	s.AmountText = ""
	s.Submitting = false
	return s.clearError()
}

// SettleFailure keeps the entered text so the user can retry.
func (s State) SettleFailure(message string, field Field) State {
	s.Submitting = false
	s.ErrorText = message
	s.ErrorField = field
	return s
}

// CanSubmit mirrors the page's send button: both fields filled and nothing
// in flight.
func (s State) CanSubmit() bool {
	return s.DestinationText != "" && s.AmountText != "" && !s.Submitting
}

func (s State) clearError() State {
	s.ErrorText = ""
	s.ErrorField = FieldNone
	return s
}
