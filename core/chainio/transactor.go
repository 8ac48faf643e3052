package chainio

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxRequest is an unsigned legacy transaction to the oracle contract.
type TxRequest struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// SignLegacyTx signs req with key for chainID.
func SignLegacyTx(key *ecdsa.PrivateKey, chainID *big.Int, req TxRequest) (*types.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &req.To,
		Value:    value,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("cannot sign transaction: %w", err)
	}
	return signed, nil
}
