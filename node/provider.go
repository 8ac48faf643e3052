// Package node runs the request processing cycle of every configured chain.
package node

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/oklog/ulid/v2"

	"github.com/AvaProtocol/ap-oracle/core/apicaller"
	"github.com/AvaProtocol/ap-oracle/core/authorization"
	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/core/events"
	"github.com/AvaProtocol/ap-oracle/core/gasoracle"
	"github.com/AvaProtocol/ap-oracle/core/submitter"
	"github.com/AvaProtocol/ap-oracle/core/templates"
	"github.com/AvaProtocol/ap-oracle/core/validation"
	"github.com/AvaProtocol/ap-oracle/core/wallets"
	"github.com/AvaProtocol/ap-oracle/metrics"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/batch"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
	"github.com/AvaProtocol/ap-oracle/pkg/retry"
	"github.com/AvaProtocol/ap-oracle/storage"
)

// How many cycle reports are kept per chain.
const reportRetention = 500

// Provider owns the pipeline of one chain for one provider account.
type Provider struct {
	chain    config.ChainConfig
	timeouts config.Timeouts
	client   *chainio.Client
	oracle   *chainio.Oracle
	base     model.ProviderState

	classifier *events.Classifier
	resolver   *templates.Resolver
	fetcher    *authorization.Fetcher
	gas        *gasoracle.Oracle
	submitter  *submitter.Submitter
	caller     apicaller.Caller

	db      storage.Storage
	logger  logger.Logger
	metrics metrics.Recorder
}

// ProviderOptions carries the collaborators a Provider is built from. Db,
// Logger and Metrics are optional.
type ProviderOptions struct {
	Chain    config.ChainConfig
	Timeouts config.Timeouts
	Mnemonic string
	Client   *chainio.Client
	Caller   apicaller.Caller
	Db       storage.Storage
	Logger   logger.Logger
	Metrics  metrics.Recorder
}

func NewProvider(opts ProviderOptions) (*Provider, error) {
	if opts.Client == nil {
		return nil, errors.New("chain client is required")
	}
	if opts.Caller == nil {
		return nil, errors.New("api caller is required")
	}

	xpub, err := hdwallet.MasterExtendedPublicKey(opts.Mnemonic)
	if err != nil {
		return nil, fmt.Errorf("cannot derive master public key: %w", err)
	}

	providerID, ok := opts.Chain.ProviderHash()
	if !ok {
		if providerID, err = hdwallet.ProviderID(xpub); err != nil {
			return nil, err
		}
	}

	l := logger.EnsureLogger(opts.Logger).With("chain_id", opts.Chain.ID, "chain", opts.Chain.Name)
	m := metrics.Ensure(opts.Metrics)
	batchRetry := opts.Timeouts.BatchRetry()
	oracle := chainio.NewOracle(opts.Client, opts.Chain.Contract())

	return &Provider{
		chain:    opts.Chain,
		timeouts: opts.Timeouts,
		client:   opts.Client,
		oracle:   oracle,
		base: model.ProviderState{
			ChainID:         opts.Chain.ChainID(),
			ChainName:       opts.Chain.Name,
			ContractAddress: opts.Chain.Contract(),
			ProviderID:      providerID,
			Xpub:            xpub,
		},
		classifier: events.NewClassifier(opts.Chain.Contract(), l),
		resolver:   templates.NewResolver(oracle, batchRetry, batch.MaxSize, l),
		fetcher:    authorization.NewFetcher(oracle, batchRetry, batch.MaxSize, l),
		gas:        gasoracle.New(opts.Client, batchRetry, batch.MaxSize, l),
		submitter: submitter.New(opts.Client, opts.Mnemonic, submitter.Config{
			ChainID:     opts.Chain.ChainID(),
			Contract:    opts.Chain.Contract(),
			GasLimit:    opts.Chain.FulfillGasLimit,
			Timeout:     opts.Timeouts.SubmissionTimeout,
			Concurrency: batch.MaxSize,
		}, l, m),
		caller:  opts.Caller,
		db:      opts.Db,
		logger:  l,
		metrics: m,
	}, nil
}

func (p *Provider) ChainID() string {
	return p.chain.ID
}

func (p *Provider) ProviderID() common.Hash {
	return p.base.ProviderID
}

// RunCycle processes every request of the block window once. The returned
// report is always non nil. The error is set when the cycle could not read
// the chain head or the log window, or could not derive the wallets.
func (p *Provider) RunCycle(ctx context.Context) (*model.CycleReport, error) {
	report := &model.CycleReport{
		CycleID:   ulid.MustNew(ulid.Now(), rand.Reader).String(),
		ChainID:   p.chain.ID,
		ChainName: p.chain.Name,
		StartedAt: time.Now().UTC(),
		Result:    model.CycleCompleted,
		Counts:    map[string]int{},
	}
	log := p.logger.With("cycle_id", report.CycleID)
	log.Info("starting cycle")

	state, err := p.run(ctx, log, report)
	if err != nil {
		report.Result = model.CycleFailed
		report.Error = err.Error()
		log.Error("cycle failed", "err", err)
	} else {
		report.Counts = state.Requests.CountByStatus()
	}
	report.Duration = time.Since(report.StartedAt)

	p.record(log, report)
	return report, err
}

func (p *Provider) run(ctx context.Context, log logger.Logger, report *model.CycleReport) (model.ProviderState, error) {
	state := p.base

	blockNumber, err := retry.Do(ctx, p.timeouts.BatchRetry(), p.client.BlockNumber)
	if err != nil {
		return state, fmt.Errorf("cannot read block number: %w", err)
	}
	state = state.WithCurrentBlock(blockNumber)
	report.BlockNumber = blockNumber

	logs, err := retry.Do(ctx, p.timeouts.BatchRetry(), func(ctx context.Context) ([]types.Log, error) {
		return events.Fetch(ctx, p.oracle, state.ProviderID, blockNumber, p.chain.BlockHistoryLimit)
	})
	if err != nil {
		return state, err
	}

	requests := p.classifier.Classify(logs)
	log.Info("classified logs", "logs", len(logs), "api_calls", len(requests.ApiCalls),
		"withdrawals", len(requests.Withdrawals), "wallet_designations", len(requests.WalletDesignations))
	if requests.Len() == 0 {
		return state.WithRequests(requests), nil
	}

	requests.ApiCalls = p.resolver.Resolve(ctx, requests.ApiCalls)

	requesterData := p.fetcher.RequesterData(ctx, state.ProviderID, authorization.Requesters(requests.ApiCalls))
	requests.ApiCalls = authorization.ApplyRequesterData(requests.ApiCalls, requesterData, log)

	authorizations := p.fetcher.Authorizations(ctx, requests.ApiCalls)
	requests = validation.Validate(requests, authorizations, log)

	requests.ApiCalls = apicaller.Process(ctx, p.caller, requests.ApiCalls, batch.MaxSize, log)
	state = state.WithRequests(requests)

	grouped, err := wallets.Group(state.Xpub, state.Requests)
	if err != nil {
		return state, fmt.Errorf("cannot group requests by wallet: %w", err)
	}
	if len(grouped) == 0 {
		return state, nil
	}

	gasPrice, err := p.gas.GasPrice(ctx)
	if err != nil {
		log.Error("skipping submission for this cycle", "err", err)
		return state, nil
	}
	state = state.WithGasPrice(gasPrice).WithWallets(p.gas.TransactionCounts(ctx, grouped))

	// submitted requests stay pending; a later cycle drops them once the
	// matching fulfillment log is in the window
	report.Transactions = p.submitter.Submit(ctx, state.Wallets, state.GasPrice)
	return state, nil
}

func (p *Provider) record(log logger.Logger, report *model.CycleReport) {
	p.metrics.IncCycle(p.chain.ID, string(report.Result))
	p.metrics.ObserveCycleDuration(p.chain.ID, report.Duration.Seconds())
	for key, n := range report.Counts {
		kind, status, _ := strings.Cut(key, ".")
		p.metrics.AddRequests(p.chain.ID, kind, status, n)
	}

	log.Info("cycle finished", "result", report.Result, "block", report.BlockNumber,
		"duration", report.Duration, "transactions", len(report.Transactions), "counts", report.Counts)

	if p.db == nil {
		return
	}
	if err := storage.SaveReport(p.db, report); err != nil {
		log.Error("cannot save cycle report", "err", err)
		return
	}
	removed, err := storage.PruneReports(p.db, p.chain.ID, reportRetention)
	if err != nil {
		log.Warn("cannot prune cycle reports", "err", err)
		return
	}
	if removed > 0 {
		if err := p.db.Vacuum(); err != nil {
			log.Warn("cannot reclaim storage space", "err", err)
		}
	}
}
