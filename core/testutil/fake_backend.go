package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
)

var ErrInjected = errors.New("injected failure")

// CallHandler answers one contract method. It receives the decoded inputs and
// returns the outputs to pack.
type CallHandler func(args []interface{}) ([]interface{}, error)

// SentCall is a decoded transaction the fake received.
type SentCall struct {
	From   common.Address
	Nonce  uint64
	Method string
	Args   []interface{}
	Value  *big.Int
	Gas    uint64
}

// FakeBackend is an in-memory chainio.Backend speaking the oracle ABI.
//
// Failures are injected by name: the backend method name (BlockNumber,
// FilterLogs, NonceAt, ...) or the contract method name (getTemplates, ...).
// Fail makes a call fail forever, FailTimes only the next n calls.
type FakeBackend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Block        uint64
	Logs         []types.Log
	Balances     map[common.Address]*big.Int
	Nonces       map[common.Address]uint64
	NonceErrors  map[common.Address]error
	GasPrice     *big.Int
	Gas          uint64

	handlers  map[string]CallHandler
	fail      map[string]error
	failTimes map[string]int
	calls     map[string]int
	args      map[string][][]interface{}
	// Block a call until the context is done
	hang map[string]bool

	Sent []*types.Transaction
}

var _ chainio.Backend = (*FakeBackend)(nil)

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		ChainIDValue: big.NewInt(31337),
		Block:        1000,
		Balances:     map[common.Address]*big.Int{},
		Nonces:       map[common.Address]uint64{},
		NonceErrors:  map[common.Address]error{},
		GasPrice:     big.NewInt(1000),
		Gas:          1000,
		handlers:     map[string]CallHandler{},
		fail:         map[string]error{},
		failTimes:    map[string]int{},
		calls:        map[string]int{},
		args:         map[string][][]interface{}{},
		hang:         map[string]bool{},
	}
}

func (f *FakeBackend) Handle(method string, h CallHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *FakeBackend) Fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = err
}

func (f *FakeBackend) FailTimes(name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTimes[name] = n
}

// Hang makes every call to name wait for its context to be done.
func (f *FakeBackend) Hang(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[name] = true
}

func (f *FakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// CallArgs returns the decoded inputs of every call made to a contract method.
func (f *FakeBackend) CallArgs(method string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interface{}{}, f.args[method]...)
}

func (f *FakeBackend) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	hang := f.hang[name]
	err := f.fail[name]
	if err == nil && f.failTimes[name] > 0 {
		f.failTimes[name]--
		err = fmt.Errorf("%w: %s", ErrInjected, name)
	}
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *FakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	if err := f.enter(ctx, "ChainID"); err != nil {
		return nil, err
	}
	return f.ChainIDValue, nil
}

func (f *FakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if err := f.enter(ctx, "BlockNumber"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Block, nil
}

func (f *FakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := f.enter(ctx, "FilterLogs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.Log
	for _, l := range f.Logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if !matchTopics(l.Topics, q.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func matchTopics(topics []common.Hash, filter [][]common.Hash) bool {
	for i, allowed := range filter {
		if len(allowed) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, t := range allowed {
			if topics[i] == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *FakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if err := f.enter(ctx, "BalanceAt"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *FakeBackend) NonceAt(ctx context.Context, account common.Address, _ *big.Int) (uint64, error) {
	if err := f.enter(ctx, "NonceAt"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.NonceErrors[account]; err != nil {
		return 0, err
	}
	return f.Nonces[account], nil
}

func (f *FakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := f.enter(ctx, "SuggestGasPrice"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.GasPrice), nil
}

func (f *FakeBackend) EstimateGas(ctx context.Context, _ ethereum.CallMsg) (uint64, error) {
	if err := f.enter(ctx, "EstimateGas"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Gas, nil
}

func (f *FakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, args, err := decodeCall(msg.Data)
	if err != nil {
		return nil, err
	}
	if err := f.enter(ctx, "CallContract"); err != nil {
		return nil, err
	}
	if err := f.enter(ctx, method.Name); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.args[method.Name] = append(f.args[method.Name], args)
	h := f.handlers[method.Name]
	f.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("no handler for %s", method.Name)
	}
	out, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *FakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := f.enter(ctx, "SendTransaction"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, tx)
	return nil
}

// SentCalls decodes every transaction received so far.
func (f *FakeBackend) SentCalls() []SentCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	signer := types.LatestSignerForChainID(f.ChainIDValue)
	calls := make([]SentCall, 0, len(f.Sent))
	for _, tx := range f.Sent {
		from, err := types.Sender(signer, tx)
		if err != nil {
			panic(err)
		}
		method, args, err := decodeCall(tx.Data())
		if err != nil {
			panic(err)
		}
		calls = append(calls, SentCall{
			From:   from,
			Nonce:  tx.Nonce(),
			Method: method.Name,
			Args:   args,
			Value:  tx.Value(),
			Gas:    tx.Gas(),
		})
	}
	return calls
}

// CountSent returns how many transactions called method.
func (f *FakeBackend) CountSent(method string) int {
	n := 0
	for _, c := range f.SentCalls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func decodeCall(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("call data too short")
	}
	oracle := chainio.ABI()
	method, err := oracle.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}
