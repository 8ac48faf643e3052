package chainio

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-oracle/model"
)

// Oracle reads from and packs calls to the oracle contract at one address.
type Oracle struct {
	client  *Client
	address common.Address
}

func NewOracle(client *Client, address common.Address) *Oracle {
	return &Oracle{client: client, address: address}
}

func (o *Oracle) Address() common.Address {
	return o.address
}

func (o *Oracle) Client() *Client {
	return o.client
}

func (o *Oracle) read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := oracleABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot pack %s: %w", method, err)
	}
	out, err := o.client.CallContract(ctx, o.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := oracleABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("cannot unpack %s: %w", method, err)
	}
	return values, nil
}

// GetTemplates returns the templates in the order of ids. A template the
// contract does not know comes back with a zero endpoint id.
func (o *Oracle) GetTemplates(ctx context.Context, ids []common.Hash) ([]model.Template, error) {
	raw := make([][32]byte, len(ids))
	for i, id := range ids {
		raw[i] = id
	}

	values, err := o.read(ctx, MethodGetTemplates, raw)
	if err != nil {
		return nil, err
	}

	endpointIDs, _ := values[0].([][32]byte)
	fulfillAddresses, _ := values[1].([]common.Address)
	fulfillFunctionIDs, _ := values[2].([][4]byte)
	errorAddresses, _ := values[3].([]common.Address)
	errorFunctionIDs, _ := values[4].([][4]byte)
	parameters, _ := values[5].([][]byte)

	n := len(ids)
	if len(endpointIDs) != n || len(fulfillAddresses) != n || len(fulfillFunctionIDs) != n ||
		len(errorAddresses) != n || len(errorFunctionIDs) != n || len(parameters) != n {
		return nil, fmt.Errorf("getTemplates returned %d endpoint ids for %d templates", len(endpointIDs), n)
	}

	templates := make([]model.Template, n)
	for i := range ids {
		templates[i] = model.Template{
			ID:                ids[i],
			EndpointID:        endpointIDs[i],
			FulfillAddress:    fulfillAddresses[i],
			FulfillFunctionID: fulfillFunctionIDs[i],
			ErrorAddress:      errorAddresses[i],
			ErrorFunctionID:   errorFunctionIDs[i],
			EncodedParameters: parameters[i],
		}
	}
	return templates, nil
}

// CheckAuthorizationStatuses answers whether clients[i] may call endpointIDs[i].
func (o *Oracle) CheckAuthorizationStatuses(ctx context.Context, endpointIDs []common.Hash, clients []common.Address) ([]bool, error) {
	if len(endpointIDs) != len(clients) {
		return nil, fmt.Errorf("got %d endpoint ids for %d clients", len(endpointIDs), len(clients))
	}
	raw := make([][32]byte, len(endpointIDs))
	for i, id := range endpointIDs {
		raw[i] = id
	}

	values, err := o.read(ctx, MethodCheckAuthorizationStatuses, raw, clients)
	if err != nil {
		return nil, err
	}
	statuses, _ := values[0].([]bool)
	if len(statuses) != len(clients) {
		return nil, fmt.Errorf("checkAuthorizationStatuses returned %d statuses for %d pairs", len(statuses), len(clients))
	}
	return statuses, nil
}

// GetDataWithClientAddresses returns the requester data of every client, in
// order. A client without a requester, or with a wallet index the node cannot
// derive, comes back with a zero requester id.
func (o *Oracle) GetDataWithClientAddresses(ctx context.Context, providerID common.Hash, clients []common.Address) ([]model.RequesterData, error) {
	values, err := o.read(ctx, MethodGetDataWithClientAddresses, [32]byte(providerID), clients)
	if err != nil {
		return nil, err
	}

	requesterIDs, _ := values[0].([][32]byte)
	walletIndices, _ := values[1].([]*big.Int)
	walletAddresses, _ := values[2].([]common.Address)
	balances, _ := values[3].([]*big.Int)
	minimums, _ := values[4].([]*big.Int)

	n := len(clients)
	if len(requesterIDs) != n || len(walletIndices) != n || len(walletAddresses) != n ||
		len(balances) != n || len(minimums) != n {
		return nil, fmt.Errorf("getDataWithClientAddresses returned %d entries for %d clients", len(requesterIDs), n)
	}

	data := make([]model.RequesterData, n)
	for i := range clients {
		// hardened indices cannot be derived from the xpub, treat them as unknown
		if !walletIndices[i].IsUint64() || walletIndices[i].Uint64() >= 1<<31 {
			continue
		}
		data[i] = model.RequesterData{
			RequesterID:    requesterIDs[i],
			WalletIndex:    uint32(walletIndices[i].Uint64()),
			WalletAddress:  walletAddresses[i],
			WalletBalance:  balances[i],
			MinimumBalance: minimums[i],
		}
	}
	return data, nil
}

func PackFulfill(requestID, value common.Hash, fulfillAddress common.Address, selector model.FunctionSelector) ([]byte, error) {
	return oracleABI.Pack(MethodFulfill, [32]byte(requestID), [32]byte(value), fulfillAddress, [4]byte(selector))
}

func PackError(requestID common.Hash, code model.ErrorCode, errorAddress common.Address, selector model.FunctionSelector) ([]byte, error) {
	return oracleABI.Pack(MethodError, [32]byte(requestID), new(big.Int).SetUint64(uint64(code)), errorAddress, [4]byte(selector))
}

func PackFulfillWalletDesignation(requestID common.Hash, walletIndex uint32) ([]byte, error) {
	return oracleABI.Pack(MethodFulfillWalletDesignation, [32]byte(requestID), new(big.Int).SetUint64(uint64(walletIndex)))
}

func PackFulfillWithdrawal(requestID common.Hash) ([]byte, error) {
	return oracleABI.Pack(MethodFulfillWithdrawal, [32]byte(requestID))
}
