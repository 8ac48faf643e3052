package chainio

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventRequestMade                = "RequestMade"
	EventShortRequestMade           = "ShortRequestMade"
	EventFullRequestMade            = "FullRequestMade"
	EventFulfillmentSuccessful      = "FulfillmentSuccessful"
	EventFulfillmentBytesSuccessful = "FulfillmentBytesSuccessful"
	EventFulfillmentErrored         = "FulfillmentErrored"
	EventFulfillmentFailed          = "FulfillmentFailed"
	EventWithdrawalRequested        = "WithdrawalRequested"
	EventWithdrawalFulfilled        = "WithdrawalFulfilled"
	EventWalletDesignationRequested = "WalletDesignationRequested"
	EventWalletDesignationFulfilled = "WalletDesignationFulfilled"
)

const (
	MethodFulfill                    = "fulfill"
	MethodError                      = "error"
	MethodFulfillWalletDesignation   = "fulfillWalletDesignation"
	MethodFulfillWithdrawal          = "fulfillWithdrawal"
	MethodCheckAuthorizationStatuses = "checkAuthorizationStatuses"
	MethodGetTemplates               = "getTemplates"
	MethodGetDataWithClientAddresses = "getDataWithClientAddresses"
)

// OracleABI is the part of the oracle contract the node talks to.
const OracleABI = `[
{"type":"event","name":"RequestMade","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"requester","type":"address","indexed":false},{"name":"templateId","type":"bytes32","indexed":false},
 {"name":"fulfillAddress","type":"address","indexed":false},{"name":"fulfillFunctionId","type":"bytes4","indexed":false},
 {"name":"errorAddress","type":"address","indexed":false},{"name":"errorFunctionId","type":"bytes4","indexed":false},
 {"name":"parameters","type":"bytes","indexed":false}]},
{"type":"event","name":"ShortRequestMade","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"requester","type":"address","indexed":false},{"name":"templateId","type":"bytes32","indexed":false},
 {"name":"parameters","type":"bytes","indexed":false}]},
{"type":"event","name":"FullRequestMade","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"requester","type":"address","indexed":false},{"name":"endpointId","type":"bytes32","indexed":false},
 {"name":"fulfillAddress","type":"address","indexed":false},{"name":"fulfillFunctionId","type":"bytes4","indexed":false},
 {"name":"errorAddress","type":"address","indexed":false},{"name":"errorFunctionId","type":"bytes4","indexed":false},
 {"name":"parameters","type":"bytes","indexed":false}]},
{"type":"event","name":"FulfillmentSuccessful","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"statusCode","type":"uint256","indexed":false},{"name":"data","type":"bytes32","indexed":false}]},
{"type":"event","name":"FulfillmentBytesSuccessful","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"statusCode","type":"uint256","indexed":false},{"name":"data","type":"bytes","indexed":false}]},
{"type":"event","name":"FulfillmentErrored","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false},
 {"name":"errorCode","type":"uint256","indexed":false}]},
{"type":"event","name":"FulfillmentFailed","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requestId","type":"bytes32","indexed":false}]},
{"type":"event","name":"WithdrawalRequested","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requesterId","type":"bytes32","indexed":true},
 {"name":"withdrawalRequestId","type":"bytes32","indexed":false},{"name":"walletInd","type":"uint256","indexed":false},
 {"name":"destination","type":"address","indexed":false}]},
{"type":"event","name":"WithdrawalFulfilled","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requesterId","type":"bytes32","indexed":true},
 {"name":"withdrawalRequestId","type":"bytes32","indexed":false},{"name":"walletInd","type":"uint256","indexed":false},
 {"name":"destination","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"WalletDesignationRequested","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requesterId","type":"bytes32","indexed":true},
 {"name":"walletDesignationRequestId","type":"bytes32","indexed":false},{"name":"walletInd","type":"uint256","indexed":false},
 {"name":"depositAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"WalletDesignationFulfilled","anonymous":false,"inputs":[
 {"name":"providerId","type":"bytes32","indexed":true},{"name":"requesterId","type":"bytes32","indexed":true},
 {"name":"walletDesignationRequestId","type":"bytes32","indexed":false},{"name":"walletInd","type":"uint256","indexed":false}]},
{"type":"function","name":"fulfill","stateMutability":"nonpayable","inputs":[
 {"name":"requestId","type":"bytes32"},{"name":"data","type":"bytes32"},
 {"name":"fulfillAddress","type":"address"},{"name":"fulfillFunctionId","type":"bytes4"}],"outputs":[]},
{"type":"function","name":"error","stateMutability":"nonpayable","inputs":[
 {"name":"requestId","type":"bytes32"},{"name":"errorCode","type":"uint256"},
 {"name":"errorAddress","type":"address"},{"name":"errorFunctionId","type":"bytes4"}],"outputs":[]},
{"type":"function","name":"fulfillWalletDesignation","stateMutability":"nonpayable","inputs":[
 {"name":"walletDesignationRequestId","type":"bytes32"},{"name":"walletInd","type":"uint256"}],"outputs":[]},
{"type":"function","name":"fulfillWithdrawal","stateMutability":"payable","inputs":[
 {"name":"withdrawalRequestId","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"checkAuthorizationStatuses","stateMutability":"view","inputs":[
 {"name":"endpointIds","type":"bytes32[]"},{"name":"clientAddresses","type":"address[]"}],
 "outputs":[{"name":"statuses","type":"bool[]"}]},
{"type":"function","name":"getTemplates","stateMutability":"view","inputs":[
 {"name":"templateIds","type":"bytes32[]"}],
 "outputs":[{"name":"endpointIds","type":"bytes32[]"},{"name":"fulfillAddresses","type":"address[]"},
 {"name":"fulfillFunctionIds","type":"bytes4[]"},{"name":"errorAddresses","type":"address[]"},
 {"name":"errorFunctionIds","type":"bytes4[]"},{"name":"parameters","type":"bytes[]"}]},
{"type":"function","name":"getDataWithClientAddresses","stateMutability":"view","inputs":[
 {"name":"providerId","type":"bytes32"},{"name":"clientAddresses","type":"address[]"}],
 "outputs":[{"name":"requesterIds","type":"bytes32[]"},{"name":"walletInds","type":"uint256[]"},
 {"name":"walletAddresses","type":"address[]"},{"name":"walletBalances","type":"uint256[]"},
 {"name":"minBalances","type":"uint256[]"}]}
]`

var oracleABI = mustParseABI(OracleABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the parsed oracle contract ABI.
func ABI() abi.ABI {
	return oracleABI
}

// EventTopic returns topic0 of the named event. It panics for names that are
// not part of the ABI.
func EventTopic(name string) common.Hash {
	event, ok := oracleABI.Events[name]
	if !ok {
		panic("unknown oracle event " + name)
	}
	return event.ID
}

// KnownEventTopics lists topic0 of every event the node ingests.
func KnownEventTopics() []common.Hash {
	names := []string{
		EventRequestMade, EventShortRequestMade, EventFullRequestMade,
		EventFulfillmentSuccessful, EventFulfillmentBytesSuccessful,
		EventFulfillmentErrored, EventFulfillmentFailed,
		EventWithdrawalRequested, EventWithdrawalFulfilled,
		EventWalletDesignationRequested, EventWalletDesignationFulfilled,
	}
	topics := make([]common.Hash, len(names))
	for i, name := range names {
		topics[i] = EventTopic(name)
	}
	return topics
}
