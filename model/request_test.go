package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestStatusLeavesPendingOnce(t *testing.T) {
	r := NewPendingRequest(common.HexToHash("0x01"), LogMetadata{BlockNumber: 10})

	assert.True(t, r.IsPending())
	assert.True(t, r.Block(ErrorRequesterDataNotFound))
	assert.Equal(t, StatusBlocked, r.Status)

	assert.False(t, r.Fail(ErrorApiCallFailed))
	assert.False(t, r.Ignore(ErrorPendingWithdrawal))
	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, ErrorRequesterDataNotFound, r.ErrorCode)
}

func TestEmbeddedRequestMutators(t *testing.T) {
	call := ApiCall{Request: NewPendingRequest(common.HexToHash("0x02"), LogMetadata{})}
	call.Fail(ErrorUnauthorizedClient)

	assert.Equal(t, StatusErrored, call.Status)
	assert.Equal(t, "UnauthorizedClient", call.ErrorCode.String())
}

func TestCountByStatus(t *testing.T) {
	pending := NewPendingRequest(common.HexToHash("0x03"), LogMetadata{})
	ignored := pending
	ignored.Ignore(ErrorPendingWithdrawal)

	g := GroupedRequests{
		ApiCalls:    []ApiCall{{Request: pending}, {Request: ignored}},
		Withdrawals: []Withdrawal{{Request: pending}},
	}

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, map[string]int{
		"api_call.pending":   1,
		"api_call.ignored":   1,
		"withdrawal.pending": 1,
	}, g.CountByStatus())
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "", ErrorCode(0).String())
	assert.Equal(t, "PendingWithdrawal", ErrorPendingWithdrawal.String())
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())
}
