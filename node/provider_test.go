package node

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/core/testutil"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
	"github.com/AvaProtocol/ap-oracle/pkg/paramcodec"
	"github.com/AvaProtocol/ap-oracle/storage"
)

var (
	endpointID  = common.HexToHash("0xe1")
	requester   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fulfillAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	errorAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	requesterID = common.HexToHash("0x5201")
)

type stubCaller struct {
	value common.Hash
}

func (s stubCaller) Call(ctx context.Context, call model.ApiCall) (common.Hash, error) {
	return s.value, nil
}

// fixture is a chain where requester has wallet index 1, enough balance and
// access to endpointID.
type fixture struct {
	backend *testutil.FakeBackend
	logs    *testutil.LogBuilder
	wallet  common.Address
	db      storage.Storage
}

func newFixture(t *testing.T) *fixture {
	wallet, err := hdwallet.DeriveAddress(testutil.TestXpub, 1)
	require.NoError(t, err)

	backend := testutil.NewFakeBackend()
	backend.Handle(chainio.MethodGetDataWithClientAddresses, func(args []interface{}) ([]interface{}, error) {
		clients := args[1].([]common.Address)
		n := len(clients)
		ids := make([][32]byte, n)
		indices := make([]*big.Int, n)
		wallets := make([]common.Address, n)
		balances := make([]*big.Int, n)
		minimums := make([]*big.Int, n)
		for i := range clients {
			ids[i] = requesterID
			indices[i] = big.NewInt(1)
			wallets[i] = wallet
			balances[i] = big.NewInt(500)
			minimums[i] = big.NewInt(100)
		}
		return []interface{}{ids, indices, wallets, balances, minimums}, nil
	})
	backend.Handle(chainio.MethodCheckAuthorizationStatuses, func(args []interface{}) ([]interface{}, error) {
		endpoints := args[0].([][32]byte)
		out := make([]bool, len(endpoints))
		for i := range out {
			out[i] = true
		}
		return []interface{}{out}, nil
	})

	db := testutil.TestMustDB()
	t.Cleanup(func() { storage.Destroy(db) })

	return &fixture{
		backend: backend,
		logs:    testutil.NewLogBuilder(testutil.TestContract, testutil.TestProviderID, 990),
		wallet:  wallet,
		db:      db,
	}
}

func (f *fixture) apiCallLog(t *testing.T, id string) {
	params, err := paramcodec.EncodeMap(map[string]string{"_path": "price", "_type": "uint256"})
	require.NoError(t, err)
	f.backend.Logs = append(f.backend.Logs, f.logs.FullRequestMade(common.HexToHash(id), requester, endpointID,
		fulfillAddr, testutil.Selector(0x11), errorAddr, testutil.Selector(0x22), params))
}

func (f *fixture) provider(t *testing.T) *Provider {
	chain := config.ChainConfig{
		ID:                f.backend.ChainIDValue.String(),
		Name:              "test",
		ContractAddress:   testutil.TestContract.Hex(),
		ProviderID:        testutil.TestProviderID.Hex(),
		BlockHistoryLimit: 300,
		FulfillGasLimit:   500_000,
	}
	p, err := NewProvider(ProviderOptions{
		Chain: chain,
		Timeouts: config.Timeouts{
			BatchAttempts:     2,
			BatchTimeout:      time.Second,
			SubmissionTimeout: time.Second,
			ApiCallTimeout:    time.Second,
		},
		Mnemonic: testutil.TestMnemonic,
		Client:   chainio.NewClient(chain.ID, f.backend),
		Caller:   stubCaller{value: common.HexToHash("0x2a")},
		Db:       f.db,
	})
	require.NoError(t, err)
	return p
}

func TestRunCycleSubmitsApiCall(t *testing.T) {
	f := newFixture(t)
	f.apiCallLog(t, "0x01")
	f.backend.Nonces[f.wallet] = 4

	report, err := f.provider(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.CycleCompleted, report.Result)
	assert.Equal(t, uint64(1000), report.BlockNumber)
	assert.Equal(t, map[string]int{"api_call.pending": 1}, report.Counts)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, common.HexToHash("0x01"), report.Transactions[0].RequestID)
	assert.Equal(t, uint64(4), report.Transactions[0].Nonce)
	assert.Equal(t, chainio.MethodFulfill, report.Transactions[0].Method)

	sent := f.backend.SentCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, f.wallet, sent[0].From)

	saved, err := storage.LatestReport(f.db, report.ChainID)
	require.NoError(t, err)
	assert.Equal(t, report.CycleID, saved.CycleID)
}

func TestRunCyclePendingWithdrawalWinsOverApiCall(t *testing.T) {
	f := newFixture(t)
	f.apiCallLog(t, "0x01")
	f.backend.Logs = append(f.backend.Logs,
		f.logs.WithdrawalRequested(common.HexToHash("0x02"), requesterID, 1, requester))
	f.backend.Balances[f.wallet] = big.NewInt(2_500_000)

	report, err := f.provider(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"api_call.ignored":   1,
		"withdrawal.pending": 1,
	}, report.Counts)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, model.KindWithdrawal, report.Transactions[0].Kind)
	assert.Equal(t, 0, f.backend.CountSent(chainio.MethodFulfill))
	assert.Equal(t, 1, f.backend.CountSent(chainio.MethodFulfillWithdrawal))

	sent := f.backend.SentCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, big.NewInt(1_500_000), sent[0].Value)
}

func TestRunCycleResubmitsUntilFulfillmentLogAppears(t *testing.T) {
	f := newFixture(t)
	f.apiCallLog(t, "0x01")
	f.backend.Nonces[f.wallet] = 4
	p := f.provider(t)

	report, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, 1, report.Counts["api_call.pending"])

	// the first transaction is not mined yet, so the request is sent again
	report, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, 2, f.backend.CountSent(chainio.MethodFulfill))

	f.backend.Logs = append(f.backend.Logs, f.logs.FulfillmentSuccessful(common.HexToHash("0x01")))
	report, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Transactions)
	assert.Empty(t, report.Counts)
	assert.Equal(t, 2, f.backend.CountSent(chainio.MethodFulfill))
}

func TestRunCycleSkipsSubmissionWithoutGasPrice(t *testing.T) {
	f := newFixture(t)
	f.apiCallLog(t, "0x01")
	f.backend.Fail("SuggestGasPrice", testutil.ErrInjected)

	report, err := f.provider(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.CycleCompleted, report.Result)
	assert.Empty(t, report.Transactions)
	assert.Empty(t, f.backend.SentCalls())
	assert.Equal(t, map[string]int{"api_call.pending": 1}, report.Counts)
}

func TestRunCycleFailsWithoutBlockNumber(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("BlockNumber", testutil.ErrInjected)

	report, err := f.provider(t).RunCycle(context.Background())
	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, model.CycleFailed, report.Result)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, 2, f.backend.Calls("BlockNumber"))

	saved, err := storage.LatestReport(f.db, report.ChainID)
	require.NoError(t, err)
	assert.Equal(t, model.CycleFailed, saved.Result)
}

func TestRunCycleFailsWithoutLogs(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("FilterLogs", testutil.ErrInjected)

	report, err := f.provider(t).RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.CycleFailed, report.Result)
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)
	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	n, err := NewNode(&config.NodeConfig{PollInterval: time.Minute}, []*Provider{p}, f.db, nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	n.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HttpJsonResp[[]ChainStatus]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, p.ChainID(), body.Data[0].ChainID)
	assert.Equal(t, uint64(1), body.Data[0].Cycles)
	require.NotNil(t, body.Data[0].Latest)
	assert.Equal(t, model.CycleCompleted, body.Data[0].Latest.Result)

	rec = httptest.NewRecorder()
	n.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
