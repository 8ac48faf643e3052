package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/model"
)

// LogBuilder emits oracle contract logs with increasing positions.
type LogBuilder struct {
	Contract   common.Address
	ProviderID common.Hash
	Block      uint64
	next       uint
}

func NewLogBuilder(contract common.Address, providerID common.Hash, block uint64) *LogBuilder {
	return &LogBuilder{Contract: contract, ProviderID: providerID, Block: block}
}

// Event packs args as the non indexed inputs of the named event. Indexed
// inputs after the provider id are given in topics.
func (b *LogBuilder) Event(name string, topics []common.Hash, args ...interface{}) types.Log {
	oracle := chainio.ABI()
	event := oracle.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		panic(err)
	}

	b.next++
	return types.Log{
		Address:     b.Contract,
		Topics:      append([]common.Hash{event.ID, b.ProviderID}, topics...),
		Data:        data,
		BlockNumber: b.Block,
		TxHash:      common.BigToHash(big.NewInt(int64(b.Block*1000) + int64(b.next))),
		Index:       b.next,
	}
}

func (b *LogBuilder) RequestMade(id common.Hash, requester common.Address, templateID common.Hash, fulfill common.Address, fulfillFn model.FunctionSelector, errAddr common.Address, errFn model.FunctionSelector, params []byte) types.Log {
	return b.Event(chainio.EventRequestMade, nil,
		[32]byte(id), requester, [32]byte(templateID), fulfill, [4]byte(fulfillFn), errAddr, [4]byte(errFn), params)
}

func (b *LogBuilder) ShortRequestMade(id common.Hash, requester common.Address, templateID common.Hash, params []byte) types.Log {
	return b.Event(chainio.EventShortRequestMade, nil, [32]byte(id), requester, [32]byte(templateID), params)
}

func (b *LogBuilder) FullRequestMade(id common.Hash, requester common.Address, endpointID common.Hash, fulfill common.Address, fulfillFn model.FunctionSelector, errAddr common.Address, errFn model.FunctionSelector, params []byte) types.Log {
	return b.Event(chainio.EventFullRequestMade, nil,
		[32]byte(id), requester, [32]byte(endpointID), fulfill, [4]byte(fulfillFn), errAddr, [4]byte(errFn), params)
}

func (b *LogBuilder) FulfillmentSuccessful(id common.Hash) types.Log {
	return b.Event(chainio.EventFulfillmentSuccessful, nil, [32]byte(id), big.NewInt(0), [32]byte{})
}

func (b *LogBuilder) FulfillmentErrored(id common.Hash, code model.ErrorCode) types.Log {
	return b.Event(chainio.EventFulfillmentErrored, nil, [32]byte(id), new(big.Int).SetUint64(uint64(code)))
}

func (b *LogBuilder) FulfillmentFailed(id common.Hash) types.Log {
	return b.Event(chainio.EventFulfillmentFailed, nil, [32]byte(id))
}

func (b *LogBuilder) WithdrawalRequested(id, requesterID common.Hash, walletIndex uint32, destination common.Address) types.Log {
	return b.Event(chainio.EventWithdrawalRequested, []common.Hash{requesterID},
		[32]byte(id), new(big.Int).SetUint64(uint64(walletIndex)), destination)
}

func (b *LogBuilder) WithdrawalFulfilled(id, requesterID common.Hash, walletIndex uint32, destination common.Address, amount *big.Int) types.Log {
	return b.Event(chainio.EventWithdrawalFulfilled, []common.Hash{requesterID},
		[32]byte(id), new(big.Int).SetUint64(uint64(walletIndex)), destination, amount)
}

func (b *LogBuilder) WalletDesignationRequested(id, requesterID common.Hash, walletIndex uint32, deposit *big.Int) types.Log {
	return b.Event(chainio.EventWalletDesignationRequested, []common.Hash{requesterID},
		[32]byte(id), new(big.Int).SetUint64(uint64(walletIndex)), deposit)
}

func (b *LogBuilder) WalletDesignationFulfilled(id, requesterID common.Hash, walletIndex uint32) types.Log {
	return b.Event(chainio.EventWalletDesignationFulfilled, []common.Hash{requesterID},
		[32]byte(id), new(big.Int).SetUint64(uint64(walletIndex)))
}
