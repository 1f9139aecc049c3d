package receive

import (
	"bytes"
	"errors"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const address = "0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5"

type memoryClipboard struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (m *memoryClipboard) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, text)
	return nil
}

func TestEncodeQR(t *testing.T) {
	data, err := EncodeQR(address, DefaultQRSize)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultQRSize, cfg.Width)
	assert.Equal(t, DefaultQRSize, cfg.Height)
}

func TestEncodeQR_Empty(t *testing.T) {
	_, err := EncodeQR("", DefaultQRSize)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestCard_QRFollowsAddress(t *testing.T) {
	card := NewCard(&memoryClipboard{}, 0, nil)

	first, err := card.QR(address)
	require.NoError(t, err)
	again, err := card.QR(address)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := card.QR("0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCard_Copy(t *testing.T) {
	cb := &memoryClipboard{}
	card := NewCard(cb, 0, nil)

	require.NoError(t, card.Copy(address))
	assert.Equal(t, []string{address}, cb.writes)

	assert.ErrorIs(t, card.Copy(""), ErrNoAddress)
}

func TestCard_CopyFailure(t *testing.T) {
	denied := errors.New("xclip not found")
	card := NewCard(&memoryClipboard{err: denied}, 0, nil)

	assert.ErrorIs(t, card.Copy(address), denied)
}
