package validation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/AvaProtocol/ap-oracle/model"
)

var (
	endpoint  = common.HexToHash("0xe1")
	requester = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	authKey   = model.AuthorizationKey{EndpointID: endpoint, Requester: requester}
)

func apiCall(walletIndex uint32, balance, minimum int64) model.ApiCall {
	e := endpoint
	call := model.ApiCall{
		Request:              model.NewPendingRequest(common.BigToHash(big.NewInt(int64(walletIndex))), model.LogMetadata{}),
		EndpointID:           &e,
		WalletBalance:        big.NewInt(balance),
		WalletMinimumBalance: big.NewInt(minimum),
	}
	call.RequesterAddress = requester
	call.AssignWallet(walletIndex)
	return call
}

func withdrawal(walletIndex uint32) model.Withdrawal {
	w := model.Withdrawal{Request: model.NewPendingRequest(common.HexToHash("0x0e01"), model.LogMetadata{})}
	w.AssignWallet(walletIndex)
	return w
}

func TestValidateApiCalls(t *testing.T) {
	tests := []struct {
		name   string
		call   model.ApiCall
		auths  map[model.AuthorizationKey]bool
		status model.RequestStatus
		code   model.ErrorCode
	}{
		{"admin wallet", apiCall(0, 10, 1), map[model.AuthorizationKey]bool{authKey: true}, model.StatusErrored, model.ErrorReservedWalletIndex},
		{"admin wallet wins over balance", apiCall(0, 0, 100), nil, model.StatusErrored, model.ErrorReservedWalletIndex},
		{"insufficient balance", apiCall(3, 99, 100), map[model.AuthorizationKey]bool{authKey: true}, model.StatusErrored, model.ErrorInsufficientBalance},
		{"balance equal to minimum", apiCall(3, 100, 100), map[model.AuthorizationKey]bool{authKey: true}, model.StatusPending, 0},
		{"balance before authorization", apiCall(3, 1, 100), nil, model.StatusErrored, model.ErrorInsufficientBalance},
		{"authorization unknown", apiCall(3, 100, 1), nil, model.StatusBlocked, model.ErrorAuthorizationNotFound},
		{"unauthorized", apiCall(3, 100, 1), map[model.AuthorizationKey]bool{authKey: false}, model.StatusErrored, model.ErrorUnauthorizedClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate(model.GroupedRequests{ApiCalls: []model.ApiCall{tt.call}}, tt.auths, nil)
			assert.Equal(t, tt.status, out.ApiCalls[0].Status)
			assert.Equal(t, tt.code, out.ApiCalls[0].ErrorCode)
		})
	}
}

func TestValidatePendingWithdrawalIgnoresApiCall(t *testing.T) {
	auths := map[model.AuthorizationKey]bool{authKey: true}
	requests := model.GroupedRequests{
		ApiCalls:    []model.ApiCall{apiCall(5, 100, 1), apiCall(6, 100, 1)},
		Withdrawals: []model.Withdrawal{withdrawal(5)},
	}

	out := Validate(requests, auths, nil)
	assert.Equal(t, model.StatusIgnored, out.ApiCalls[0].Status)
	assert.Equal(t, model.ErrorPendingWithdrawal, out.ApiCalls[0].ErrorCode)
	assert.Equal(t, model.StatusPending, out.ApiCalls[1].Status)
	assert.Equal(t, model.StatusPending, out.Withdrawals[0].Status)
}

func TestValidateNeverRevisitsSettled(t *testing.T) {
	blocked := apiCall(0, 0, 100)
	blocked.Block(model.ErrorTemplateNotFound)

	out := Validate(model.GroupedRequests{ApiCalls: []model.ApiCall{blocked}}, nil, nil)
	assert.Equal(t, model.StatusBlocked, out.ApiCalls[0].Status)
	assert.Equal(t, model.ErrorTemplateNotFound, out.ApiCalls[0].ErrorCode)
}

func TestValidateReservedIndexForWalletRequests(t *testing.T) {
	d := model.WalletDesignation{Request: model.NewPendingRequest(common.HexToHash("0xd1"), model.LogMetadata{})}
	d.AssignWallet(0)

	out := Validate(model.GroupedRequests{
		Withdrawals:        []model.Withdrawal{withdrawal(0)},
		WalletDesignations: []model.WalletDesignation{d},
	}, nil, nil)

	assert.Equal(t, model.ErrorReservedWalletIndex, out.Withdrawals[0].ErrorCode)
	assert.Equal(t, model.StatusErrored, out.WalletDesignations[0].Status)
}
