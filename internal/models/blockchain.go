package models

import (
	"fmt"
	"strings"
)

// UnknownChainName is shown when the wallet reports a chain id missing from the registry.
const UnknownChainName = "Unknown"

// ChainInfo describes an EVM chain the wallet may be connected to.
type ChainInfo struct {
	ID              int64
	Name            string
	Symbol          string
	Decimals        int
	RpcEndpoint     string
	ExplorerBaseURL string
	Testnet         bool
}

var (
	XDCApothem = ChainInfo{
		ID:              51,
		Name:            "XDC Apothem Testnet",
		Symbol:          "XDC",
		Decimals:        18,
		RpcEndpoint:     "https://rpc.ankr.com/xdc_testnet",
		ExplorerBaseURL: "https://explorer.apothem.network",
		Testnet:         true,
	}

	XDCMainnet = ChainInfo{
		ID:              50,
		Name:            "XDC Network",
		Symbol:          "XDC",
		Decimals:        18,
		RpcEndpoint:     "https://rpc.xinfin.network",
		ExplorerBaseURL: "https://xdcscan.io",
	}

	Ethereum = ChainInfo{
		ID:              1,
		Name:            "Ethereum",
		Symbol:          "ETH",
		Decimals:        18,
		RpcEndpoint:     "https://svc.blockdaemon.com/ethereum/mainnet/native",
		ExplorerBaseURL: "https://etherscan.io",
	}
)

var registry = map[int64]ChainInfo{
	XDCApothem.ID: XDCApothem,
	XDCMainnet.ID: XDCMainnet,
	Ethereum.ID:   Ethereum,
}

// LookupChain returns the registry entry for a chain id.
func LookupChain(id int64) (ChainInfo, bool) {
	c, ok := registry[id]
	return c, ok
}

// ChainName returns the display name for a chain id, or UnknownChainName.
func ChainName(id int64) string {
	if c, ok := registry[id]; ok {
		return c.Name
	}
	return UnknownChainName
}

func (c ChainInfo) String() string {
	return c.Name
}

// TxURL builds the explorer link for a transaction hash.
func (c ChainInfo) TxURL(txHash string) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(c.ExplorerBaseURL, "/"), txHash)
}

// AddressURL builds the explorer link for an account.
func (c ChainInfo) AddressURL(address string) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(c.ExplorerBaseURL, "/"), address)
}
