// Package wallets groups the requests that will produce a transaction by the
// wallet index that has to sign them.
package wallets

import (
	"fmt"

	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
)

// Group builds one WalletData per signing wallet. Pending requests are always
// grouped; errored api calls are grouped when their wallet is known so the
// error can be reported on-chain. The admin index only ever signs wallet
// designations, so it exists iff a designation is pending.
func Group(xpub string, requests model.GroupedRequests) (map[uint32]model.WalletData, error) {
	wallets := map[uint32]model.WalletData{}

	get := func(index uint32) (model.WalletData, error) {
		if w, ok := wallets[index]; ok {
			return w, nil
		}
		address, err := hdwallet.DeriveAddress(xpub, index)
		if err != nil {
			return model.WalletData{}, fmt.Errorf("cannot derive wallet %d: %w", index, err)
		}
		return model.WalletData{Index: index, Address: address}, nil
	}

	for _, call := range requests.ApiCalls {
		if !call.HasWallet || call.WalletIndex == hdwallet.AdminWalletIndex {
			continue
		}
		if call.Status != model.StatusPending && call.Status != model.StatusErrored {
			continue
		}
		w, err := get(call.WalletIndex)
		if err != nil {
			return nil, err
		}
		w.Requests.ApiCalls = append(w.Requests.ApiCalls, call)
		wallets[call.WalletIndex] = w
	}

	for _, withdrawal := range requests.Withdrawals {
		if !withdrawal.IsPending() || !withdrawal.HasWallet || withdrawal.WalletIndex == hdwallet.AdminWalletIndex {
			continue
		}
		w, err := get(withdrawal.WalletIndex)
		if err != nil {
			return nil, err
		}
		w.Requests.Withdrawals = append(w.Requests.Withdrawals, withdrawal)
		wallets[withdrawal.WalletIndex] = w
	}

	for _, designation := range requests.WalletDesignations {
		if !designation.IsPending() {
			continue
		}
		w, err := get(hdwallet.AdminWalletIndex)
		if err != nil {
			return nil, err
		}
		w.Requests.WalletDesignations = append(w.Requests.WalletDesignations, designation)
		wallets[hdwallet.AdminWalletIndex] = w
	}

	return wallets, nil
}
