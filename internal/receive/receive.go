// Package receive backs the "receive" card: a QR code of the connected
// address and a copy-to-clipboard action.
package receive

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the QR image edge in pixels.
const DefaultQRSize = 180

var (
	ErrNoAddress            = errors.New("no connected address")
	ErrClipboardUnsupported = errors.New("clipboard is not available on this host")
)

// Clipboard writes text to a clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard is the clipboard of the host running the app.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// EncodeQR renders text as a PNG QR code.
func EncodeQR(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, ErrNoAddress
	}
	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Card caches the QR of the last address so it is only re-rendered when the
// connected address changes.
type Card struct {
	clipboard Clipboard
	size      int
	logger    *zerolog.Logger

	mu      sync.Mutex
	address string
	png     []byte
}

func NewCard(cb Clipboard, size int, logger *zerolog.Logger) *Card {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cb == nil {
		cb = SystemClipboard{}
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return &Card{clipboard: cb, size: size, logger: logger}
}

// QR returns the PNG QR code for address.
func (c *Card) QR(address string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if address != "" && address == c.address {
		return c.png, nil
	}
	png, err := EncodeQR(address, c.size)
	if err != nil {
		return nil, err
	}
	c.address, c.png = address, png
	c.logger.Debug().Str("address", address).Int("bytes", len(png)).Msg("Rendered receive QR")
	return png, nil
}

// Copy writes address to the clipboard.
func (c *Card) Copy(address string) error {
	if address == "" {
		return ErrNoAddress
	}
	if err := c.clipboard.WriteAll(address); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to copy address to clipboard")
		return fmt.Errorf("copy address: %w", err)
	}
	c.logger.Info().Str("address", address).Msg("Copied address to clipboard")
	return nil
}
