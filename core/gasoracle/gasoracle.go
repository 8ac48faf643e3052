// Package gasoracle reads the nonces of the signing wallets and the gas price
// a cycle submits with.
package gasoracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
	"github.com/AvaProtocol/ap-oracle/pkg/retry"
)

var ErrGasPriceUnavailable = errors.New("gas price unavailable")

type Oracle struct {
	client      *chainio.Client
	retry       retry.Options
	concurrency int
	logger      logger.Logger
}

func New(client *chainio.Client, opts retry.Options, concurrency int, l logger.Logger) *Oracle {
	return &Oracle{
		client:      client,
		retry:       opts,
		concurrency: concurrency,
		logger:      logger.EnsureLogger(l),
	}
}

// TransactionCounts fills the transaction count of every wallet. A wallet
// whose count cannot be read is left out of the result and sits this cycle
// out.
func (o *Oracle) TransactionCounts(ctx context.Context, wallets map[uint32]model.WalletData) map[uint32]model.WalletData {
	var (
		mu  sync.Mutex
		out = make(map[uint32]model.WalletData, len(wallets))
	)

	g, gctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for index, wallet := range wallets {
		g.Go(func() error {
			count, err := retry.Do(gctx, o.retry, func(ctx context.Context) (uint64, error) {
				return o.client.TransactionCount(ctx, wallet.Address)
			})
			if err != nil {
				o.logger.Error("failed to read transaction count, skipping wallet this cycle",
					"wallet_index", index, "address", wallet.Address.Hex(), "err", err)
				return nil
			}

			wallet.TransactionCount = count
			mu.Lock()
			out[index] = wallet
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// GasPrice returns the suggested legacy gas price.
func (o *Oracle) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := retry.Do(ctx, o.retry, o.client.SuggestGasPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGasPriceUnavailable, err)
	}
	return price, nil
}
