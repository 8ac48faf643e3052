package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type CycleResult string

const (
	CycleCompleted CycleResult = "completed"
	CycleFailed    CycleResult = "failed"
)

// SubmittedTransaction records one transaction a cycle broadcast.
type SubmittedTransaction struct {
	Kind        RequestKind `json:"kind"`
	RequestID   common.Hash `json:"request_id"`
	WalletIndex uint32      `json:"wallet_index"`
	Nonce       uint64      `json:"nonce"`
	TxHash      common.Hash `json:"tx_hash"`
	// Method is the contract function the transaction calls
	Method string `json:"method"`
}

// CycleReport is the persisted summary of one coordinator cycle on one chain.
type CycleReport struct {
	CycleID      string                 `json:"cycle_id"`
	ChainID      string                 `json:"chain_id"`
	ChainName    string                 `json:"chain_name"`
	BlockNumber  uint64                 `json:"block_number"`
	StartedAt    time.Time              `json:"started_at"`
	Duration     time.Duration          `json:"duration"`
	Result       CycleResult            `json:"result"`
	Error        string                 `json:"error,omitempty"`
	Counts       map[string]int         `json:"counts"`
	Transactions []SubmittedTransaction `json:"transactions"`
}
