// Package events pulls the oracle contract logs of a provider out of a block
// window and turns them into requests.
package events

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

// Fetch returns the provider logs of the last blockHistory blocks up to and
// including currentBlock.
func Fetch(ctx context.Context, oracle *chainio.Oracle, providerID common.Hash, currentBlock, blockHistory uint64) ([]types.Log, error) {
	fromBlock := uint64(0)
	if currentBlock > blockHistory {
		fromBlock = currentBlock - blockHistory
	}

	logs, err := oracle.Client().FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(currentBlock),
		Addresses: []common.Address{oracle.Address()},
		Topics:    [][]common.Hash{chainio.KnownEventTopics(), {providerID}},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot fetch logs in [%d, %d]: %w", fromBlock, currentBlock, err)
	}
	return logs, nil
}

// Classifier turns raw logs into unfulfilled requests.
type Classifier struct {
	contract *bind.BoundContract
	logger   logger.Logger
}

func NewClassifier(contract common.Address, l logger.Logger) *Classifier {
	return &Classifier{
		contract: bind.NewBoundContract(contract, chainio.ABI(), nil, nil, nil),
		logger:   logger.EnsureLogger(l),
	}
}

type fulfilledSet map[common.Hash]bool

// Classify parses logs in chain order. A request whose id has a fulfilment
// log in the same window is dropped, and a request id seen twice keeps its
// first log. Unknown or undecodable logs are skipped.
func (c *Classifier) Classify(logs []types.Log) model.GroupedRequests {
	sorted := make([]types.Log, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BlockNumber != sorted[j].BlockNumber {
			return sorted[i].BlockNumber < sorted[j].BlockNumber
		}
		return sorted[i].Index < sorted[j].Index
	})

	var (
		apiCalls     []model.ApiCall
		withdrawals  []model.Withdrawal
		designations []model.WalletDesignation

		apiCallsDone     = fulfilledSet{}
		withdrawalsDone  = fulfilledSet{}
		designationsDone = fulfilledSet{}
	)

	oracleABI := chainio.ABI()
	for _, log := range sorted {
		if len(log.Topics) == 0 {
			continue
		}
		event, err := oracleABI.EventByID(log.Topics[0])
		if err != nil {
			c.logger.Warn("skipping log with unknown topic", "tx_hash", log.TxHash.Hex(), "log_index", log.Index)
			continue
		}

		values := map[string]interface{}{}
		if err := c.contract.UnpackLogIntoMap(values, event.Name, log); err != nil {
			c.logger.Warn("skipping undecodable log", "event", event.Name, "tx_hash", log.TxHash.Hex(), "log_index", log.Index, "err", err)
			continue
		}
		meta := model.LogMetadata{BlockNumber: log.BlockNumber, TransactionHash: log.TxHash, LogIndex: log.Index}

		switch event.Name {
		case chainio.EventRequestMade, chainio.EventShortRequestMade, chainio.EventFullRequestMade:
			apiCalls = append(apiCalls, apiCallFromLog(event.Name, values, meta))
		case chainio.EventFulfillmentSuccessful, chainio.EventFulfillmentBytesSuccessful,
			chainio.EventFulfillmentErrored, chainio.EventFulfillmentFailed:
			apiCallsDone[hashValue(values, "requestId")] = true
		case chainio.EventWithdrawalRequested:
			withdrawals = append(withdrawals, withdrawalFromLog(values, meta))
		case chainio.EventWithdrawalFulfilled:
			withdrawalsDone[hashValue(values, "withdrawalRequestId")] = true
		case chainio.EventWalletDesignationRequested:
			designations = append(designations, designationFromLog(values, meta))
		case chainio.EventWalletDesignationFulfilled:
			designationsDone[hashValue(values, "walletDesignationRequestId")] = true
		}
	}

	return model.GroupedRequests{
		ApiCalls:           unfulfilled(apiCalls, apiCallsDone, func(r model.ApiCall) common.Hash { return r.ID }),
		Withdrawals:        unfulfilled(withdrawals, withdrawalsDone, func(r model.Withdrawal) common.Hash { return r.ID }),
		WalletDesignations: unfulfilled(designations, designationsDone, func(r model.WalletDesignation) common.Hash { return r.ID }),
	}
}

func unfulfilled[T any](requests []T, done fulfilledSet, id func(T) common.Hash) []T {
	seen := map[common.Hash]bool{}
	out := make([]T, 0, len(requests))
	for _, r := range requests {
		key := id(r)
		if done[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func apiCallFromLog(name string, values map[string]interface{}, meta model.LogMetadata) model.ApiCall {
	call := model.ApiCall{
		Request:           model.NewPendingRequest(hashValue(values, "requestId"), meta),
		EncodedParameters: bytesValue(values, "parameters"),
	}
	call.RequesterAddress = addressValue(values, "requester")

	switch name {
	case chainio.EventRequestMade:
		call.Type = model.ApiCallRegular
		templateID := hashValue(values, "templateId")
		call.TemplateID = &templateID
		// zero targets on a regular request are filled from its template
		call.FulfillAddress = nonZeroAddress(addressValue(values, "fulfillAddress"))
		call.FulfillFunctionID = nonZeroSelector(selectorValue(values, "fulfillFunctionId"))
		call.ErrorAddress = nonZeroAddress(addressValue(values, "errorAddress"))
		call.ErrorFunctionID = nonZeroSelector(selectorValue(values, "errorFunctionId"))
	case chainio.EventShortRequestMade:
		call.Type = model.ApiCallShort
		templateID := hashValue(values, "templateId")
		call.TemplateID = &templateID
	case chainio.EventFullRequestMade:
		call.Type = model.ApiCallFull
		endpointID := hashValue(values, "endpointId")
		fulfillAddress := addressValue(values, "fulfillAddress")
		fulfillFn := selectorValue(values, "fulfillFunctionId")
		errorAddress := addressValue(values, "errorAddress")
		errorFn := selectorValue(values, "errorFunctionId")
		call.EndpointID = &endpointID
		call.FulfillAddress = &fulfillAddress
		call.FulfillFunctionID = &fulfillFn
		call.ErrorAddress = &errorAddress
		call.ErrorFunctionID = &errorFn
	}
	return call
}

func withdrawalFromLog(values map[string]interface{}, meta model.LogMetadata) model.Withdrawal {
	w := model.Withdrawal{
		Request:     model.NewPendingRequest(hashValue(values, "withdrawalRequestId"), meta),
		Destination: addressValue(values, "destination"),
	}
	w.RequesterID = hashValue(values, "requesterId")
	w.RequesterAddress = w.Destination
	if index, ok := walletIndexValue(values, "walletInd"); ok {
		w.AssignWallet(index)
	} else {
		w.Valid = false
		w.Fail(model.ErrorInvalidRequestParameters)
	}
	return w
}

func designationFromLog(values map[string]interface{}, meta model.LogMetadata) model.WalletDesignation {
	d := model.WalletDesignation{
		Request:       model.NewPendingRequest(hashValue(values, "walletDesignationRequestId"), meta),
		DepositAmount: bigValue(values, "depositAmount"),
	}
	d.RequesterID = hashValue(values, "requesterId")
	// designations are always signed by the admin wallet
	d.AssignWallet(0)
	if index, ok := walletIndexValue(values, "walletInd"); ok {
		d.DesignatedWalletIndex = index
	} else {
		d.Valid = false
		d.Fail(model.ErrorInvalidRequestParameters)
	}
	return d
}

func hashValue(values map[string]interface{}, key string) common.Hash {
	switch v := values[key].(type) {
	case [32]byte:
		return v
	case common.Hash:
		return v
	}
	return common.Hash{}
}

func addressValue(values map[string]interface{}, key string) common.Address {
	v, _ := values[key].(common.Address)
	return v
}

func selectorValue(values map[string]interface{}, key string) model.FunctionSelector {
	v, _ := values[key].([4]byte)
	return v
}

func bytesValue(values map[string]interface{}, key string) []byte {
	v, _ := values[key].([]byte)
	return v
}

func bigValue(values map[string]interface{}, key string) *big.Int {
	if v, ok := values[key].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

// walletIndexValue rejects indices that cannot be derived without hardening.
func walletIndexValue(values map[string]interface{}, key string) (uint32, bool) {
	v, ok := values[key].(*big.Int)
	if !ok || v.Sign() < 0 || !v.IsUint64() || v.Uint64() >= 1<<31 {
		return 0, false
	}
	return uint32(v.Uint64()), true
}

func nonZeroAddress(a common.Address) *common.Address {
	if a == (common.Address{}) {
		return nil
	}
	return &a
}

func nonZeroSelector(s model.FunctionSelector) *model.FunctionSelector {
	if s == (model.FunctionSelector{}) {
		return nil
	}
	return &s
}
