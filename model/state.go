package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WalletData is everything a wallet needs to submit its queue in one cycle.
type WalletData struct {
	Index            uint32          `json:"index"`
	Address          common.Address  `json:"address"`
	TransactionCount uint64          `json:"transaction_count"`
	Requests         GroupedRequests `json:"requests"`
}

// ProviderState is the per-chain snapshot a cycle works on. Stages never
// mutate a state they were given, they derive a new one with the With*
// helpers.
type ProviderState struct {
	ChainID         *big.Int       `json:"chain_id"`
	ChainName       string         `json:"chain_name"`
	ContractAddress common.Address `json:"contract_address"`
	ProviderID      common.Hash    `json:"provider_id"`
	Xpub            string         `json:"-"`

	CurrentBlock uint64   `json:"current_block"`
	GasPrice     *big.Int `json:"gas_price,omitempty"`

	Requests GroupedRequests       `json:"requests"`
	Wallets  map[uint32]WalletData `json:"wallets,omitempty"`
}

func (s ProviderState) WithCurrentBlock(block uint64) ProviderState {
	s.CurrentBlock = block
	return s
}

func (s ProviderState) WithGasPrice(price *big.Int) ProviderState {
	s.GasPrice = price
	return s
}

func (s ProviderState) WithRequests(requests GroupedRequests) ProviderState {
	s.Requests = requests
	return s
}

// WithWallets replaces the wallet table. The map is owned by the returned
// state afterwards.
func (s ProviderState) WithWallets(wallets map[uint32]WalletData) ProviderState {
	s.Wallets = wallets
	return s
}
