// Package session tracks which wallet account and chain are connected and
// publishes every change on an in-process event bus.
package session

import (
	"context"
	"math/big"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/models"
	"xdc-transfer/internal/transfer"
)

// TopicChanged is published with the new Session whenever it changes.
const TopicChanged = "session:changed"

// Wallet is what the store polls.
type Wallet interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Session is the connected account and chain as shown on the page.
type Session struct {
	Address   string `json:"address,omitempty"`
	ChainID   int64  `json:"chain_id,omitempty"`
	ChainName string `json:"chain_name"`
	Connected bool   `json:"connected"`
}

func disconnected() Session {
	return Session{ChainName: models.UnknownChainName}
}

// Store holds the current Session and the signer for its account.
type Store struct {
	wallet    Wallet
	signerFor func(common.Address) transfer.Signer
	bus       evbus.Bus
	interval  time.Duration
	logger    *zerolog.Logger

	mu      sync.RWMutex
	current Session
	account common.Address
	signer  transfer.Signer
}

func NewStore(wallet Wallet, signerFor func(common.Address) transfer.Signer, bus evbus.Bus, interval time.Duration, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if bus == nil {
		bus = evbus.New()
	}
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &Store{
		wallet:    wallet,
		signerFor: signerFor,
		bus:       bus,
		interval:  interval,
		logger:    logger,
		current:   disconnected(),
	}
}

func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Signer returns the connected account's signer, or nil when no wallet is
// connected.
func (s *Store) Signer() transfer.Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

// Account returns the connected account.
func (s *Store) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.current.Connected
}

// Subscribe calls fn with every new Session. Handlers run synchronously on
// the polling goroutine and must not subscribe or unsubscribe themselves.
func (s *Store) Subscribe(fn func(Session)) (func(), error) {
	if err := s.bus.Subscribe(TopicChanged, fn); err != nil {
		return nil, err
	}
	return func() {
		if err := s.bus.Unsubscribe(TopicChanged, fn); err != nil {
			s.logger.Debug().Err(err).Msg("Session listener already removed")
		}
	}, nil
}

// Refresh asks the wallet for its accounts and chain. An unreachable
// wallet counts as disconnected.
func (s *Store) Refresh(ctx context.Context) (Session, error) {
	next := disconnected()
	var account common.Address

	accounts, err := s.wallet.Accounts(ctx)
	if err == nil && len(accounts) > 0 {
		account = accounts[0]
		var id *big.Int
		id, err = s.wallet.ChainID(ctx)
		if err == nil {
			next = Session{
				Address:   account.Hex(),
				ChainID:   id.Int64(),
				ChainName: models.ChainName(id.Int64()),
				Connected: true,
			}
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Wallet unreachable, treating as disconnected")
	}

	s.mu.Lock()
	changed := next != s.current
	if changed {
		s.current = next
		s.account = account
		s.signer = nil
		if next.Connected && s.signerFor != nil {
			s.signer = s.signerFor(account)
		}
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info().
			Bool("connected", next.Connected).
			Str("address", next.Address).
			Str("chain", next.ChainName).
			Int64("chainId", next.ChainID).
			Msg("Wallet session changed")
		s.bus.Publish(TopicChanged, next)
	}
	return next, err
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *Store) Run(ctx context.Context) {
	_, _ = s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Session store shutting down")
			return
		case <-ticker.C:
			_, _ = s.Refresh(ctx)
		}
	}
}
