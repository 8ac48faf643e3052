// Package authorization looks up which requesters may call which endpoints
// and what the contract knows about each requester.
package authorization

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/batch"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
	"github.com/AvaProtocol/ap-oracle/pkg/retry"
)

type Fetcher struct {
	oracle      *chainio.Oracle
	retry       retry.Options
	concurrency int
	logger      logger.Logger
}

func NewFetcher(oracle *chainio.Oracle, opts retry.Options, concurrency int, l logger.Logger) *Fetcher {
	return &Fetcher{
		oracle:      oracle,
		retry:       opts,
		concurrency: concurrency,
		logger:      logger.EnsureLogger(l),
	}
}

// Authorizations checks every distinct (endpoint, requester) pair of the
// pending calls. A pair missing from the result is unknown for this cycle.
func (f *Fetcher) Authorizations(ctx context.Context, calls []model.ApiCall) map[model.AuthorizationKey]bool {
	keys := []model.AuthorizationKey{}
	for _, call := range calls {
		if call.IsPending() && call.EndpointID != nil {
			keys = append(keys, model.AuthorizationKey{EndpointID: *call.EndpointID, Requester: call.RequesterAddress})
		}
	}
	keys = lo.Uniq(keys)

	results := batch.Run(ctx, keys, batch.MaxSize, f.concurrency, func(ctx context.Context, chunk []model.AuthorizationKey) ([]bool, error) {
		endpointIDs := make([]common.Hash, len(chunk))
		clients := make([]common.Address, len(chunk))
		for i, key := range chunk {
			endpointIDs[i] = key.EndpointID
			clients[i] = key.Requester
		}
		return retry.Do(ctx, f.retry, func(ctx context.Context) ([]bool, error) {
			return f.oracle.CheckAuthorizationStatuses(ctx, endpointIDs, clients)
		})
	})

	statuses := map[model.AuthorizationKey]bool{}
	for _, result := range results {
		if result.Err != nil {
			f.logger.Error("failed to check authorizations", "count", len(result.Items), "err", result.Err)
			continue
		}
		for i, key := range result.Items {
			statuses[key] = result.Value[i]
		}
	}
	return statuses
}

// RequesterData loads the data of every distinct requester address. A
// requester unknown to the contract is left out of the result.
func (f *Fetcher) RequesterData(ctx context.Context, providerID common.Hash, addresses []common.Address) map[common.Address]model.RequesterData {
	addresses = lo.Uniq(addresses)

	results := batch.Run(ctx, addresses, batch.MaxSize, f.concurrency, func(ctx context.Context, chunk []common.Address) ([]model.RequesterData, error) {
		return retry.Do(ctx, f.retry, func(ctx context.Context) ([]model.RequesterData, error) {
			return f.oracle.GetDataWithClientAddresses(ctx, providerID, chunk)
		})
	})

	data := map[common.Address]model.RequesterData{}
	for _, result := range results {
		if result.Err != nil {
			f.logger.Error("failed to fetch requester data", "count", len(result.Items), "err", result.Err)
			continue
		}
		for i, address := range result.Items {
			if result.Value[i].RequesterID == (common.Hash{}) {
				continue
			}
			data[address] = result.Value[i]
		}
	}
	return data
}

// ApplyRequesterData copies wallet data into the calls that may still produce
// a transaction. A pending call whose requester has no data is Blocked until a
// later cycle; an errored one is left without a wallet.
func ApplyRequesterData(calls []model.ApiCall, data map[common.Address]model.RequesterData, l logger.Logger) []model.ApiCall {
	l = logger.EnsureLogger(l)
	out := make([]model.ApiCall, len(calls))
	for i, call := range calls {
		if needsRequesterData(call) {
			d, ok := data[call.RequesterAddress]
			switch {
			case ok:
				walletAddress := d.WalletAddress
				call.RequesterID = d.RequesterID
				call.AssignWallet(d.WalletIndex)
				call.WalletAddress = &walletAddress
				call.WalletBalance = d.WalletBalance
				call.WalletMinimumBalance = d.MinimumBalance
			case call.IsPending():
				l.Info("requester data not available", "request_id", call.ID.Hex(), "requester", call.RequesterAddress.Hex())
				call.Block(model.ErrorRequesterDataNotFound)
			}
		}
		out[i] = call
	}
	return out
}

// Requesters lists the requester addresses whose data the calls need.
func Requesters(calls []model.ApiCall) []common.Address {
	return lo.FilterMap(calls, func(call model.ApiCall, _ int) (common.Address, bool) {
		return call.RequesterAddress, needsRequesterData(call)
	})
}

func needsRequesterData(call model.ApiCall) bool {
	return call.Status == model.StatusPending || call.Status == model.StatusErrored
}
