// Package wallet talks to a JSON-RPC wallet endpoint (Clef, a node with
// managed accounts, or a browser bridge). Keys never leave the wallet; this
// package only asks it to send and then watches the chain for the receipt.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/interfaces"
	"xdc-transfer/internal/rpc"
	"xdc-transfer/internal/transfer"
)

var (
	_ transfer.Watcher       = (*Client)(nil)
	_ transfer.Signer        = (*AccountSigner)(nil)
	_ transfer.ChainReporter = (*AccountSigner)(nil)
	_ interfaces.HeadSource  = (*Client)(nil)
)

// Client is a wallet endpoint connection.
type Client struct {
	transport    *rpc.Client
	rc           *gethrpc.Client
	eth          *ethclient.Client
	pollInterval time.Duration
	logger       *zerolog.Logger
}

// Dial connects to the endpoint configured in transport. pollInterval is the
// receipt polling period used by WaitForConfirmation.
func Dial(ctx context.Context, transport *rpc.Client, pollInterval time.Duration) (*Client, error) {
	rc, err := transport.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		transport:    transport,
		rc:           rc,
		eth:          ethclient.NewClient(rc),
		pollInterval: pollInterval,
		logger:       transport.Logger,
	}, nil
}

// Accounts lists the accounts the wallet is willing to sign for. An empty
// list means no account is connected.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := c.transport.Retry(ctx, "eth_accounts", func() error {
		return c.rc.CallContext(ctx, &accounts, "eth_accounts")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.transport.Retry(ctx, "eth_chainId", func() error {
		var err error
		id, err = c.eth.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.transport.Retry(ctx, "eth_blockNumber", func() error {
		var err error
		n, err = c.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return n, nil
}

// BalanceAt returns the latest balance of account in base units.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.transport.Retry(ctx, "eth_getBalance", func() error {
		var err error
		balance, err = c.eth.BalanceAt(ctx, account, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// Signer returns a signer that sends from account.
func (c *Client) Signer(account common.Address) *AccountSigner {
	return &AccountSigner{client: c, from: account}
}

// sendTransaction asks the wallet to sign and broadcast a plain value
// transfer. Gas and fee fields are left to the wallet. It is never retried:
// a lost response does not mean the transaction was not sent.
func (c *Client) sendTransaction(ctx context.Context, from, to common.Address, amount *big.Int) (common.Hash, error) {
	args := map[string]interface{}{
		"from":  from,
		"to":    to,
		"value": (*hexutil.Big)(amount),
	}

	var hash common.Hash
	if err := c.rc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		return common.Hash{}, errors.New("wallet returned an empty transaction hash")
	}

	c.logger.Debug().
		Str("from", from.Hex()).
		Str("to", to.Hex()).
		Str("value", amount.String()).
		Str("txHash", hash.Hex()).
		Msg("Transaction accepted by wallet")
	return hash, nil
}

// WaitForConfirmation polls for the receipt of hash until it is included
// or ctx ends. A failed receipt returns transfer.ErrTransactionReverted.
func (c *Client) WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := c.transport.Retry(ctx, "eth_getTransactionReceipt", func() error {
			var err error
			receipt, err = c.eth.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}

		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s in block %v", transfer.ErrTransactionReverted, hash.Hex(), receipt.BlockNumber)
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Close() {
	c.rc.Close()
	c.transport.Close()
}

// AccountSigner sends from one wallet account.
type AccountSigner struct {
	client *Client
	from   common.Address
}

func (s *AccountSigner) Account() common.Address {
	return s.from
}

func (s *AccountSigner) SendValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	return s.client.sendTransaction(ctx, s.from, to, amount)
}

// ChainID reports the chain the wallet sends on.
func (s *AccountSigner) ChainID(ctx context.Context) (*big.Int, error) {
	return s.client.ChainID(ctx)
}
