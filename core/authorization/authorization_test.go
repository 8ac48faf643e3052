package authorization

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/core/testutil"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/retry"
)

var (
	endpointA = common.HexToHash("0xea")
	endpointB = common.HexToHash("0xeb")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newFetcher(backend *testutil.FakeBackend) *Fetcher {
	oracle := chainio.NewOracle(chainio.NewClient("test", backend), testutil.TestContract)
	return NewFetcher(oracle, retry.Simple(2, 4*time.Second), 4, nil)
}

func callFor(id int64, endpoint common.Hash, requester common.Address) model.ApiCall {
	call := model.ApiCall{
		Request:    model.NewPendingRequest(common.BigToHash(big.NewInt(id)), model.LogMetadata{}),
		EndpointID: &endpoint,
	}
	call.RequesterAddress = requester
	return call
}

// authorizeOnly answers true for requester alice only.
func authorizeOnly(who common.Address) testutil.CallHandler {
	return func(args []interface{}) ([]interface{}, error) {
		clients := args[1].([]common.Address)
		out := make([]bool, len(clients))
		for i, c := range clients {
			out[i] = c == who
		}
		return []interface{}{out}, nil
	}
}

func TestAuthorizationsDedupPairs(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Handle(chainio.MethodCheckAuthorizationStatuses, authorizeOnly(alice))

	calls := []model.ApiCall{
		callFor(1, endpointA, alice),
		callFor(2, endpointA, alice),
		callFor(3, endpointA, bob),
		callFor(4, endpointB, alice),
		callFor(5, endpointA, bob),
	}

	statuses := newFetcher(backend).Authorizations(context.Background(), calls)
	assert.Equal(t, map[model.AuthorizationKey]bool{
		{EndpointID: endpointA, Requester: alice}: true,
		{EndpointID: endpointA, Requester: bob}:   false,
		{EndpointID: endpointB, Requester: alice}: true,
	}, statuses)

	args := backend.CallArgs(chainio.MethodCheckAuthorizationStatuses)
	require.Len(t, args, 1)
	assert.Len(t, args[0][0], 3, "one lookup per distinct pair")
}

func TestAuthorizationsBatchesOfTen(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Handle(chainio.MethodCheckAuthorizationStatuses, authorizeOnly(alice))

	calls := []model.ApiCall{}
	for i := 0; i < 19; i++ {
		calls = append(calls, callFor(int64(i), common.BigToHash(big.NewInt(int64(100+i))), alice))
	}

	statuses := newFetcher(backend).Authorizations(context.Background(), calls)
	assert.Len(t, statuses, 19)
	assert.Equal(t, 2, backend.Calls(chainio.MethodCheckAuthorizationStatuses))
}

func TestAuthorizationsFailedBatchIsUnknown(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Handle(chainio.MethodCheckAuthorizationStatuses, authorizeOnly(alice))
	backend.Fail(chainio.MethodCheckAuthorizationStatuses, testutil.ErrInjected)

	statuses := newFetcher(backend).Authorizations(context.Background(), []model.ApiCall{callFor(1, endpointA, alice)})
	assert.Empty(t, statuses)
	assert.Equal(t, 2, backend.Calls(chainio.MethodCheckAuthorizationStatuses))
}

func TestRequesterDataAndApply(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Handle(chainio.MethodGetDataWithClientAddresses, func(args []interface{}) ([]interface{}, error) {
		clients := args[1].([]common.Address)
		n := len(clients)
		ids := make([][32]byte, n)
		indices := make([]*big.Int, n)
		wallets := make([]common.Address, n)
		balances := make([]*big.Int, n)
		minimums := make([]*big.Int, n)
		for i, c := range clients {
			indices[i] = new(big.Int)
			balances[i] = new(big.Int)
			minimums[i] = new(big.Int)
			if c == alice {
				ids[i] = common.HexToHash("0x5201")
				indices[i] = big.NewInt(7)
				wallets[i] = common.HexToAddress("0x77")
				balances[i] = big.NewInt(500)
				minimums[i] = big.NewInt(100)
			}
		}
		return []interface{}{ids, indices, wallets, balances, minimums}, nil
	})

	errored := callFor(3, endpointA, bob)
	errored.Fail(model.ErrorInvalidTemplateParameters)
	calls := []model.ApiCall{callFor(1, endpointA, alice), callFor(2, endpointA, bob), errored}

	f := newFetcher(backend)
	data := f.RequesterData(context.Background(), testutil.TestProviderID, Requesters(calls))
	require.Len(t, data, 1)

	out := ApplyRequesterData(calls, data, nil)
	assert.Equal(t, uint32(7), out[0].WalletIndex)
	assert.True(t, out[0].HasWallet)
	assert.Equal(t, big.NewInt(500), out[0].WalletBalance)
	assert.Equal(t, common.HexToHash("0x5201"), out[0].RequesterID)

	assert.Equal(t, model.StatusBlocked, out[1].Status)
	assert.Equal(t, model.ErrorRequesterDataNotFound, out[1].ErrorCode)

	assert.Equal(t, model.StatusErrored, out[2].Status)
	assert.False(t, out[2].HasWallet)

	args := backend.CallArgs(chainio.MethodGetDataWithClientAddresses)
	require.Len(t, args, 1)
	assert.Len(t, args[0][1], 2, "distinct requesters only")
}
