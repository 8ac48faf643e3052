package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusBlocked RequestStatus = "blocked"
	StatusErrored RequestStatus = "errored"
	StatusIgnored RequestStatus = "ignored"

	// StatusFulfilled is never set by a cycle. Requests with a fulfillment
	// log in the window are dropped before they get a status.
	StatusFulfilled RequestStatus = "fulfilled"
)

type RequestKind string

const (
	KindApiCall           RequestKind = "api_call"
	KindWithdrawal        RequestKind = "withdrawal"
	KindWalletDesignation RequestKind = "wallet_designation"
)

// FunctionSelector is the 4 byte id of the function that receives a response.
type FunctionSelector [4]byte

// LogMetadata points back at the log a request was parsed from.
type LogMetadata struct {
	BlockNumber     uint64      `json:"block_number"`
	TransactionHash common.Hash `json:"transaction_hash"`
	LogIndex        uint        `json:"log_index"`
}

// Request is the part every request kind shares.
//
// Status only ever leaves Pending once per cycle: Block, Fail and Ignore are
// no-ops on a request that already settled.
type Request struct {
	ID               common.Hash    `json:"id"`
	RequesterAddress common.Address `json:"requester_address"`
	RequesterID      common.Hash    `json:"requester_id"`
	WalletIndex      uint32         `json:"wallet_index"`
	// HasWallet is false until the wallet index of the request is known
	HasWallet bool          `json:"has_wallet"`
	Valid     bool          `json:"valid"`
	Status    RequestStatus `json:"status"`
	ErrorCode ErrorCode     `json:"error_code,omitempty"`
	Log       LogMetadata   `json:"log"`
}

func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// Block defers the request to a later cycle.
func (r *Request) Block(code ErrorCode) bool {
	return r.settle(StatusBlocked, code)
}

// Fail settles the request with an error reported on-chain.
func (r *Request) Fail(code ErrorCode) bool {
	return r.settle(StatusErrored, code)
}

// Ignore drops the request for this cycle without reporting anything.
func (r *Request) Ignore(code ErrorCode) bool {
	return r.settle(StatusIgnored, code)
}

func (r *Request) settle(status RequestStatus, code ErrorCode) bool {
	if r.Status != StatusPending {
		return false
	}
	r.Status = status
	r.ErrorCode = code
	return true
}

// AssignWallet sets the signing wallet index of the request.
func (r *Request) AssignWallet(index uint32) {
	r.WalletIndex = index
	r.HasWallet = true
}

func NewPendingRequest(id common.Hash, log LogMetadata) Request {
	return Request{
		ID:     id,
		Valid:  true,
		Status: StatusPending,
		Log:    log,
	}
}

type ApiCallType string

const (
	// ApiCallRegular references a template and may override its targets
	ApiCallRegular ApiCallType = "regular"
	// ApiCallShort takes every target from its template
	ApiCallShort ApiCallType = "short"
	// ApiCallFull carries every field itself
	ApiCallFull ApiCallType = "full"
)

// ApiCall asks the node to call an endpoint and deliver the value on-chain.
//
// Optional fields are pointers; a nil pointer means the field is missing and
// may be filled from a template. Values behind the pointers are never mutated
// once set, stages replace the pointer instead.
type ApiCall struct {
	Request

	Type              ApiCallType       `json:"type"`
	TemplateID        *common.Hash      `json:"template_id,omitempty"`
	EndpointID        *common.Hash      `json:"endpoint_id,omitempty"`
	FulfillAddress    *common.Address   `json:"fulfill_address,omitempty"`
	FulfillFunctionID *FunctionSelector `json:"fulfill_function_id,omitempty"`
	ErrorAddress      *common.Address   `json:"error_address,omitempty"`
	ErrorFunctionID   *FunctionSelector `json:"error_function_id,omitempty"`

	EncodedParameters []byte            `json:"encoded_parameters,omitempty"`
	Parameters        map[string]string `json:"parameters,omitempty"`

	WalletAddress        *common.Address `json:"wallet_address,omitempty"`
	WalletBalance        *big.Int        `json:"wallet_balance,omitempty"`
	WalletMinimumBalance *big.Int        `json:"wallet_minimum_balance,omitempty"`

	ResponseValue *common.Hash `json:"response_value,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// Withdrawal asks the node to send the balance of a requester wallet back to
// the requester.
type Withdrawal struct {
	Request

	Destination common.Address `json:"destination"`
}

// WalletDesignation asks the admin wallet to designate a wallet index to a
// requester.
type WalletDesignation struct {
	Request

	DesignatedWalletIndex uint32   `json:"designated_wallet_index"`
	DepositAmount         *big.Int `json:"deposit_amount"`
}

// GroupedRequests holds one queue per request kind.
type GroupedRequests struct {
	ApiCalls           []ApiCall           `json:"api_calls"`
	Withdrawals        []Withdrawal        `json:"withdrawals"`
	WalletDesignations []WalletDesignation `json:"wallet_designations"`
}

func (g GroupedRequests) Len() int {
	return len(g.ApiCalls) + len(g.Withdrawals) + len(g.WalletDesignations)
}

// CountByStatus tallies every request as "<kind>.<status>".
func (g GroupedRequests) CountByStatus() map[string]int {
	counts := map[string]int{}
	for _, r := range g.ApiCalls {
		counts[string(KindApiCall)+"."+string(r.Status)]++
	}
	for _, r := range g.Withdrawals {
		counts[string(KindWithdrawal)+"."+string(r.Status)]++
	}
	for _, r := range g.WalletDesignations {
		counts[string(KindWalletDesignation)+"."+string(r.Status)]++
	}
	return counts
}

// Template is the on-chain record a request can reference by id.
type Template struct {
	ID                common.Hash      `json:"id"`
	EndpointID        common.Hash      `json:"endpoint_id"`
	FulfillAddress    common.Address   `json:"fulfill_address"`
	FulfillFunctionID FunctionSelector `json:"fulfill_function_id"`
	ErrorAddress      common.Address   `json:"error_address"`
	ErrorFunctionID   FunctionSelector `json:"error_function_id"`
	EncodedParameters []byte           `json:"encoded_parameters"`
}

// AuthorizationKey identifies one authorization lookup.
type AuthorizationKey struct {
	EndpointID common.Hash
	Requester  common.Address
}

// RequesterData is what the contract knows about a requester address.
type RequesterData struct {
	RequesterID    common.Hash    `json:"requester_id"`
	WalletIndex    uint32         `json:"wallet_index"`
	WalletAddress  common.Address `json:"wallet_address"`
	WalletBalance  *big.Int       `json:"wallet_balance"`
	MinimumBalance *big.Int       `json:"minimum_balance"`
}
