// Package validation settles the requests that must not be served this cycle.
package validation

import (
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

// Validate runs the checks below, in order, on every pending request. The first
// failing check settles the request; settled requests are never re-evaluated.
//
// Api calls:
//  1. wallet index is the admin index: Errored ReservedWalletIndex
//  2. wallet balance below its minimum: Errored InsufficientBalance
//  3. authorization unknown: Blocked AuthorizationNotFound
//  4. requester not authorized: Errored UnauthorizedClient
//  5. a withdrawal is pending for the same wallet: Ignored PendingWithdrawal
//
// Withdrawals from, and designations of, the admin index are Errored
// ReservedWalletIndex.
func Validate(requests model.GroupedRequests, authorizations map[model.AuthorizationKey]bool, l logger.Logger) model.GroupedRequests {
	l = logger.EnsureLogger(l)

	withdrawals := make([]model.Withdrawal, len(requests.Withdrawals))
	pendingWithdrawals := map[uint32]bool{}
	for i, w := range requests.Withdrawals {
		if w.IsPending() && w.WalletIndex == hdwallet.AdminWalletIndex {
			w.Fail(model.ErrorReservedWalletIndex)
			logSettled(l, w.Request, "withdrawal")
		}
		if w.IsPending() {
			pendingWithdrawals[w.WalletIndex] = true
		}
		withdrawals[i] = w
	}

	designations := make([]model.WalletDesignation, len(requests.WalletDesignations))
	for i, d := range requests.WalletDesignations {
		if d.IsPending() && d.DesignatedWalletIndex == hdwallet.AdminWalletIndex {
			d.Fail(model.ErrorReservedWalletIndex)
			logSettled(l, d.Request, "wallet_designation")
		}
		designations[i] = d
	}

	calls := make([]model.ApiCall, len(requests.ApiCalls))
	for i, call := range requests.ApiCalls {
		if call.IsPending() {
			validateApiCall(&call, authorizations, pendingWithdrawals)
			if !call.IsPending() {
				logSettled(l, call.Request, "api_call")
			}
		}
		calls[i] = call
	}

	return model.GroupedRequests{
		ApiCalls:           calls,
		Withdrawals:        withdrawals,
		WalletDesignations: designations,
	}
}

func validateApiCall(call *model.ApiCall, authorizations map[model.AuthorizationKey]bool, pendingWithdrawals map[uint32]bool) {
	if call.HasWallet && call.WalletIndex == hdwallet.AdminWalletIndex {
		call.Fail(model.ErrorReservedWalletIndex)
		return
	}

	if call.WalletBalance != nil && call.WalletMinimumBalance != nil &&
		call.WalletBalance.Cmp(call.WalletMinimumBalance) < 0 {
		call.Fail(model.ErrorInsufficientBalance)
		return
	}

	if call.EndpointID == nil {
		call.Block(model.ErrorAuthorizationNotFound)
		return
	}
	authorized, ok := authorizations[model.AuthorizationKey{EndpointID: *call.EndpointID, Requester: call.RequesterAddress}]
	if !ok {
		call.Block(model.ErrorAuthorizationNotFound)
		return
	}
	if !authorized {
		call.Fail(model.ErrorUnauthorizedClient)
		return
	}

	if call.HasWallet && pendingWithdrawals[call.WalletIndex] {
		call.Ignore(model.ErrorPendingWithdrawal)
	}
}

func logSettled(l logger.Logger, r model.Request, kind string) {
	l.Info("request settled by validation",
		"kind", kind,
		"request_id", r.ID.Hex(),
		"status", r.Status,
		"error_code", r.ErrorCode.String(),
		"wallet_index", r.WalletIndex)
}
