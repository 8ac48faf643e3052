// Package submitter signs and broadcasts the transactions of a cycle.
package submitter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/metrics"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

var errNothingToSend = errors.New("nothing to send")

type Config struct {
	ChainID     *big.Int
	Contract    common.Address
	GasLimit    uint64
	Timeout     time.Duration
	Concurrency int
}

// Submitter sends the queue of every wallet. Wallets run in parallel; inside
// a wallet submissions are strictly sequential with locally incremented
// nonces, and the first failed submission ends the wallet's turn so no nonce
// gap is ever broadcast.
type Submitter struct {
	client   *chainio.Client
	mnemonic string
	config   Config
	logger   logger.Logger
	metrics  metrics.Recorder
}

func New(client *chainio.Client, mnemonic string, config Config, l logger.Logger, m metrics.Recorder) *Submitter {
	return &Submitter{
		client:   client,
		mnemonic: mnemonic,
		config:   config,
		logger:   logger.EnsureLogger(l),
		metrics:  metrics.Ensure(m),
	}
}

// Submit broadcasts every transaction the wallets owe and returns the ones
// that reached the node. Confirmations are not awaited.
func (s *Submitter) Submit(ctx context.Context, wallets map[uint32]model.WalletData, gasPrice *big.Int) []model.SubmittedTransaction {
	var (
		mu   sync.Mutex
		sent []model.SubmittedTransaction
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.config.Concurrency > 0 {
		g.SetLimit(s.config.Concurrency)
	}
	for _, wallet := range wallets {
		g.Go(func() error {
			txs := s.submitWallet(gctx, wallet, gasPrice)
			mu.Lock()
			sent = append(sent, txs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(sent, func(i, j int) bool {
		if sent[i].WalletIndex != sent[j].WalletIndex {
			return sent[i].WalletIndex < sent[j].WalletIndex
		}
		return sent[i].Nonce < sent[j].Nonce
	})
	return sent
}

// pending is one transaction a wallet owes, built lazily so withdrawals can
// price themselves at submission time. committed is the maximum cost of the
// transactions the wallet already sent this cycle.
type pending struct {
	kind      model.RequestKind
	requestID common.Hash
	method    string
	build     func(ctx context.Context, committed *big.Int) (chainio.TxRequest, error)
}

func (s *Submitter) submitWallet(ctx context.Context, wallet model.WalletData, gasPrice *big.Int) []model.SubmittedTransaction {
	log := s.logger.With("chain", s.client.Chain(), "wallet_index", wallet.Index, "address", wallet.Address.Hex())

	queue := s.queue(wallet, gasPrice)
	if len(queue) == 0 {
		return nil
	}

	key, err := hdwallet.DeriveSigningKey(s.mnemonic, wallet.Index)
	if err != nil {
		log.Error("cannot derive signing key", "err", err)
		return nil
	}

	nonce := wallet.TransactionCount
	committed := new(big.Int)
	var sent []model.SubmittedTransaction
	for _, p := range queue {
		tx, err := s.send(ctx, key, nonce, p, committed)
		if errors.Is(err, errNothingToSend) {
			log.Info("skipping submission", "kind", p.kind, "request_id", p.requestID.Hex(), "reason", err)
			s.metrics.IncSubmission(s.client.Chain(), string(p.kind), "skipped")
			continue
		}
		if err != nil {
			log.Error("submission failed, stopping wallet for this cycle",
				"kind", p.kind, "request_id", p.requestID.Hex(), "nonce", nonce, "err", err)
			s.metrics.IncSubmission(s.client.Chain(), string(p.kind), "failed")
			break
		}

		txHash := tx.Hash()
		committed.Add(committed, tx.Cost())
		log.Info("transaction submitted", "kind", p.kind, "method", p.method, "request_id", p.requestID.Hex(), "nonce", nonce, "tx_hash", txHash.Hex())
		s.metrics.IncSubmission(s.client.Chain(), string(p.kind), "sent")
		sent = append(sent, model.SubmittedTransaction{
			Kind:        p.kind,
			RequestID:   p.requestID,
			WalletIndex: wallet.Index,
			Nonce:       nonce,
			TxHash:      txHash,
			Method:      p.method,
		})
		nonce++
	}
	return sent
}

func (s *Submitter) send(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, p pending, committed *big.Int) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := p.build(ctx, committed)
	if err != nil {
		return nil, err
	}
	req.Nonce = nonce

	tx, err := chainio.SignLegacyTx(key, s.config.ChainID, req)
	if err != nil {
		return nil, err
	}
	if err := s.client.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// queue orders a wallet's work: api calls, then wallet designations, then
// withdrawals.
func (s *Submitter) queue(wallet model.WalletData, gasPrice *big.Int) []pending {
	var queue []pending

	for _, call := range wallet.Requests.ApiCalls {
		if p, ok := s.apiCallTx(call, gasPrice); ok {
			queue = append(queue, p)
		}
	}

	for _, d := range wallet.Requests.WalletDesignations {
		if !d.IsPending() {
			continue
		}
		queue = append(queue, pending{
			kind:      model.KindWalletDesignation,
			requestID: d.ID,
			method:    chainio.MethodFulfillWalletDesignation,
			build: func(ctx context.Context, _ *big.Int) (chainio.TxRequest, error) {
				data, err := chainio.PackFulfillWalletDesignation(d.ID, d.DesignatedWalletIndex)
				return s.contractCall(data, gasPrice), err
			},
		})
	}

	for _, w := range wallet.Requests.Withdrawals {
		if !w.IsPending() {
			continue
		}
		queue = append(queue, pending{
			kind:      model.KindWithdrawal,
			requestID: w.ID,
			method:    chainio.MethodFulfillWithdrawal,
			build: func(ctx context.Context, committed *big.Int) (chainio.TxRequest, error) {
				return s.withdrawalTx(ctx, wallet.Address, w, gasPrice, committed)
			},
		})
	}

	return queue
}

func (s *Submitter) apiCallTx(call model.ApiCall, gasPrice *big.Int) (pending, bool) {
	switch call.Status {
	case model.StatusPending:
		if call.ResponseValue == nil || call.FulfillAddress == nil || call.FulfillFunctionID == nil {
			return pending{}, false
		}
		return pending{
			kind:      model.KindApiCall,
			requestID: call.ID,
			method:    chainio.MethodFulfill,
			build: func(ctx context.Context, _ *big.Int) (chainio.TxRequest, error) {
				data, err := chainio.PackFulfill(call.ID, *call.ResponseValue, *call.FulfillAddress, *call.FulfillFunctionID)
				return s.contractCall(data, gasPrice), err
			},
		}, true
	case model.StatusErrored:
		// without an error address there is nobody to notify
		if call.ErrorAddress == nil || *call.ErrorAddress == (common.Address{}) {
			return pending{}, false
		}
		selector := model.FunctionSelector{}
		if call.ErrorFunctionID != nil {
			selector = *call.ErrorFunctionID
		}
		return pending{
			kind:      model.KindApiCall,
			requestID: call.ID,
			method:    chainio.MethodError,
			build: func(ctx context.Context, _ *big.Int) (chainio.TxRequest, error) {
				data, err := chainio.PackError(call.ID, call.ErrorCode, *call.ErrorAddress, selector)
				return s.contractCall(data, gasPrice), err
			},
		}, true
	}
	return pending{}, false
}

func (s *Submitter) contractCall(data []byte, gasPrice *big.Int) chainio.TxRequest {
	return chainio.TxRequest{
		To:       s.config.Contract,
		GasLimit: s.config.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}
}

// withdrawalTx sends what is left of the wallet balance once the transactions
// already sent this cycle and the withdrawal itself are paid for.
func (s *Submitter) withdrawalTx(ctx context.Context, from common.Address, w model.Withdrawal, gasPrice, committed *big.Int) (chainio.TxRequest, error) {
	data, err := chainio.PackFulfillWithdrawal(w.ID)
	if err != nil {
		return chainio.TxRequest{}, err
	}

	balance, err := s.client.BalanceAt(ctx, from)
	if err != nil {
		return chainio.TxRequest{}, fmt.Errorf("cannot read wallet balance: %w", err)
	}

	contract := s.config.Contract
	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &contract, Data: data})
	if err != nil {
		return chainio.TxRequest{}, fmt.Errorf("cannot estimate withdrawal gas: %w", err)
	}

	available := new(big.Int).Sub(balance, committed)
	funds := WithdrawalFunds(available, gas, gasPrice)
	if funds.Sign() <= 0 {
		return chainio.TxRequest{}, fmt.Errorf("%w: balance %s minus %s committed does not cover %d gas",
			errNothingToSend, balance, committed, gas)
	}

	return chainio.TxRequest{
		To:       contract,
		Value:    funds,
		GasLimit: gas,
		GasPrice: gasPrice,
		Data:     data,
	}, nil
}

// WithdrawalFunds is balance - gas * gasPrice.
func WithdrawalFunds(balance *big.Int, gas uint64, gasPrice *big.Int) *big.Int {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
	return new(big.Int).Sub(balance, cost)
}
