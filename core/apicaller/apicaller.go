// Package apicaller performs the off-chain API call behind an api call request
// and encodes the picked value as the bytes32 the fulfil transaction carries.
package apicaller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

// Caller performs the API call of one request.
type Caller interface {
	Call(ctx context.Context, call model.ApiCall) (common.Hash, error)
}

// CallError carries the error code a failed call is reported with on-chain.
type CallError struct {
	Code model.ErrorCode
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func failWith(code model.ErrorCode, format string, args ...interface{}) error {
	return &CallError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the error code of err, ApiCallFailed when it has none.
func CodeOf(err error) model.ErrorCode {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Code
	}
	return model.ErrorApiCallFailed
}

// ReservedParameters steer how the response is read. They are never sent to
// the API.
type ReservedParameters struct {
	Path  string `mapstructure:"_path"`
	Type  string `mapstructure:"_type"`
	Times string `mapstructure:"_times"`
}

func splitParameters(params map[string]string) (ReservedParameters, map[string]string, error) {
	reserved := ReservedParameters{}
	if err := mapstructure.Decode(params, &reserved); err != nil {
		return reserved, nil, err
	}

	rest := make(map[string]string, len(params))
	for k, v := range params {
		if !strings.HasPrefix(k, "_") {
			rest[k] = v
		}
	}
	return reserved, rest, nil
}

// HTTPCaller calls endpoints configured by id over HTTP and reads json.
type HTTPCaller struct {
	endpoints map[common.Hash]config.EndpointConfig
	client    *resty.Client
	timeout   time.Duration
	logger    logger.Logger
}

func NewHTTPCaller(endpoints []config.EndpointConfig, timeout time.Duration, l logger.Logger) *HTTPCaller {
	byID := make(map[common.Hash]config.EndpointConfig, len(endpoints))
	for _, e := range endpoints {
		byID[e.EndpointID()] = e
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &HTTPCaller{
		endpoints: byID,
		client:    client,
		timeout:   timeout,
		logger:    logger.EnsureLogger(l),
	}
}

func (c *HTTPCaller) Call(ctx context.Context, call model.ApiCall) (common.Hash, error) {
	if call.EndpointID == nil {
		return common.Hash{}, failWith(model.ErrorInvalidOIS, "request has no endpoint id")
	}
	endpoint, ok := c.endpoints[*call.EndpointID]
	if !ok {
		return common.Hash{}, failWith(model.ErrorInvalidOIS, "endpoint %s is not configured", call.EndpointID.Hex())
	}

	reserved, params, err := splitParameters(call.Parameters)
	if err != nil {
		return common.Hash{}, failWith(model.ErrorInvalidResponseParameters, "invalid reserved parameters: %w", err)
	}
	// configured parameters cannot be overridden by a requester
	for k, v := range endpoint.Parameters {
		params[k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := c.client.R().
		SetContext(ctx).
		SetHeaders(endpoint.Headers).
		SetHeader("Accept", "application/json")

	var resp *resty.Response
	if strings.EqualFold(endpoint.Method, "post") {
		resp, err = request.SetBody(params).Post(endpoint.URL)
	} else {
		resp, err = request.SetQueryParams(params).Get(endpoint.URL)
	}
	if err != nil {
		return common.Hash{}, failWith(model.ErrorApiCallFailed, "%s %s: %w", endpoint.Method, endpoint.URL, err)
	}
	if resp.IsError() {
		return common.Hash{}, failWith(model.ErrorApiCallFailed, "%s returned %s", endpoint.URL, resp.Status())
	}

	var body interface{}
	decoder := json.NewDecoder(bytes.NewReader(resp.Body()))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return common.Hash{}, failWith(model.ErrorApiCallFailed, "response is not json: %w", err)
	}

	value, ok := extract(body, reserved.Path)
	if !ok {
		return common.Hash{}, failWith(model.ErrorResponseValueNotFound, "no value at path %q", reserved.Path)
	}

	encoded, err := Encode(value, reserved.Type, reserved.Times)
	if err != nil {
		return common.Hash{}, failWith(model.ErrorInvalidResponseParameters, "%w", err)
	}
	return encoded, nil
}
