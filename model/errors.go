package model

import "fmt"

// ErrorCode is a request scoped failure. The numeric value is what the error
// transaction carries on-chain, so values must never be renumbered.
type ErrorCode uint64

const (
	ErrorInvalidOIS                ErrorCode = 1
	ErrorInvalidResponseParameters ErrorCode = 2
	ErrorApiCallFailed             ErrorCode = 3
	ErrorResponseValueNotFound     ErrorCode = 4
	ErrorTemplateNotFound          ErrorCode = 5
	ErrorInvalidTemplateParameters ErrorCode = 6
	ErrorAuthorizationNotFound     ErrorCode = 7
	ErrorUnauthorizedClient        ErrorCode = 8
	ErrorReservedWalletIndex       ErrorCode = 9
	ErrorInsufficientBalance       ErrorCode = 10
	ErrorRequesterDataNotFound     ErrorCode = 11
	ErrorInvalidRequestParameters  ErrorCode = 12
	ErrorPendingWithdrawal         ErrorCode = 13
)

var errorCodeNames = map[ErrorCode]string{
	ErrorInvalidOIS:                "InvalidOIS",
	ErrorInvalidResponseParameters: "InvalidResponseParameters",
	ErrorApiCallFailed:             "ApiCallFailed",
	ErrorResponseValueNotFound:     "ResponseValueNotFound",
	ErrorTemplateNotFound:          "TemplateNotFound",
	ErrorInvalidTemplateParameters: "InvalidTemplateParameters",
	ErrorAuthorizationNotFound:     "AuthorizationNotFound",
	ErrorUnauthorizedClient:        "UnauthorizedClient",
	ErrorReservedWalletIndex:       "ReservedWalletIndex",
	ErrorInsufficientBalance:       "InsufficientBalance",
	ErrorRequesterDataNotFound:     "RequesterDataNotFound",
	ErrorInvalidRequestParameters:  "InvalidRequestParameters",
	ErrorPendingWithdrawal:         "PendingWithdrawal",
}

func (c ErrorCode) String() string {
	if c == 0 {
		return ""
	}
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint64(c))
}
