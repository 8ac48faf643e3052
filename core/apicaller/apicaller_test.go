package apicaller

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/model"
)

const endpointHex = "0x0000000000000000000000000000000000000000000000000000000000000001"

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Empty(t, r.URL.Query().Get("_path"), "reserved parameters stay local")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"market_data":{"current_price":{"usd":1234.5678,"neg":-2.5},"ok":true,"name":"ether"},"list":[10,20]}`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newCaller(srv *httptest.Server, path string) *HTTPCaller {
	return NewHTTPCaller([]config.EndpointConfig{{
		ID:      endpointHex,
		URL:     srv.URL + path,
		Headers: map[string]string{"X-Api-Key": "secret"},
	}}, 100*time.Millisecond, nil)
}

func apiCall(params map[string]string) model.ApiCall {
	endpoint := common.HexToHash(endpointHex)
	return model.ApiCall{
		Request:    model.NewPendingRequest(common.HexToHash("0x01"), model.LogMetadata{}),
		EndpointID: &endpoint,
		Parameters: params,
	}
}

func TestCallEncodesValue(t *testing.T) {
	srv := newServer(t)
	caller := newCaller(srv, "/price")

	tests := []struct {
		name   string
		params map[string]string
		want   common.Hash
	}{
		{"uint256 times", map[string]string{"_path": "market_data.current_price.usd", "_type": "uint256", "_times": "100"}, common.BigToHash(big.NewInt(123456))},
		{"array index", map[string]string{"_path": "list.1", "_type": "int256"}, common.BigToHash(big.NewInt(20))},
		{"bool", map[string]string{"_path": "market_data.ok", "_type": "bool"}, common.BigToHash(big.NewInt(1))},
		{"bytes32", map[string]string{"_path": "market_data.name", "_type": "bytes32"}, common.BytesToHash(append([]byte("ether"), make([]byte, 27)...))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := caller.Call(context.Background(), apiCall(tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallNegativeInt256(t *testing.T) {
	srv := newServer(t)
	got, err := newCaller(srv, "/price").Call(context.Background(),
		apiCall(map[string]string{"_path": "market_data.current_price.neg", "_type": "int256", "_times": "10"}))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe7"), got)
}

func TestCallErrorCodes(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		path   string
		params map[string]string
		code   model.ErrorCode
	}{
		{"missing value", "/price", map[string]string{"_path": "market_data.nope", "_type": "int256"}, model.ErrorResponseValueNotFound},
		{"bad type", "/price", map[string]string{"_path": "market_data.name", "_type": "int256"}, model.ErrorInvalidResponseParameters},
		{"negative uint", "/price", map[string]string{"_path": "market_data.current_price.neg", "_type": "uint256"}, model.ErrorInvalidResponseParameters},
		{"no type", "/price", map[string]string{"_path": "list.0"}, model.ErrorInvalidResponseParameters},
		{"server error", "/down", map[string]string{"_type": "int256"}, model.ErrorApiCallFailed},
		{"timeout", "/slow", map[string]string{"_type": "int256"}, model.ErrorApiCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCaller(srv, tt.path).Call(context.Background(), apiCall(tt.params))
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestCallUnknownEndpoint(t *testing.T) {
	caller := NewHTTPCaller(nil, time.Second, nil)
	_, err := caller.Call(context.Background(), apiCall(nil))
	assert.Equal(t, model.ErrorInvalidOIS, CodeOf(err))
}

type stubCaller map[common.Hash]error

func (s stubCaller) Call(ctx context.Context, call model.ApiCall) (common.Hash, error) {
	if err := s[call.ID]; err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash("0x2a"), nil
}

func TestProcess(t *testing.T) {
	ok := apiCall(nil)
	failing := apiCall(nil)
	failing.ID = common.HexToHash("0x02")
	blocked := apiCall(nil)
	blocked.ID = common.HexToHash("0x03")
	blocked.Block(model.ErrorAuthorizationNotFound)

	caller := stubCaller{failing.ID: failWith(model.ErrorResponseValueNotFound, "nothing")}
	out := Process(context.Background(), caller, []model.ApiCall{ok, failing, blocked}, 2, nil)

	require.NotNil(t, out[0].ResponseValue)
	assert.Equal(t, common.HexToHash("0x2a"), *out[0].ResponseValue)
	assert.Equal(t, model.StatusErrored, out[1].Status)
	assert.Equal(t, model.ErrorResponseValueNotFound, out[1].ErrorCode)
	assert.NotEmpty(t, out[1].ErrorMessage)
	assert.Equal(t, model.StatusBlocked, out[2].Status)
	assert.Nil(t, out[2].ResponseValue)
	assert.Nil(t, ok.ResponseValue, "input calls are left untouched")
}
