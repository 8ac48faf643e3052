// Package paramcodec encodes and decodes the key/value parameters attached to
// requests and templates.
//
// The layout is ABI based: a bytes32 header made of the encoding version '1'
// followed by one type character per parameter, then for every parameter a
// bytes32 name and its value encoded with the matching ABI type.
//
//	b bytes32   s string   a address   u uint256   i int256   B bytes
//
// Decoded values are rendered as strings so request and template parameters
// can be merged as plain maps.
package paramcodec

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const encodingVersion = '1'

var (
	ErrEmptyHeader        = errors.New("parameters are missing the header")
	ErrUnsupportedVersion = errors.New("unsupported parameter encoding version")
	ErrUnknownType        = errors.New("unknown parameter type")
)

// Parameter is a single typed, named value to encode.
type Parameter struct {
	Type  byte
	Name  string
	Value string
}

var abiTypes = map[byte]string{
	'b': "bytes32",
	's': "string",
	'a': "address",
	'u': "uint256",
	'i': "int256",
	'B': "bytes",
}

var (
	bytes32Type = mustType("bytes32")
	typeCache   = func() map[byte]abi.Type {
		m := make(map[byte]abi.Type, len(abiTypes))
		for c, name := range abiTypes {
			m[c] = mustType(name)
		}
		return m
	}()
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Decode parses encoded parameters. Empty input decodes to an empty map.
func Decode(encoded []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(encoded) == 0 {
		return out, nil
	}
	if len(encoded) < 32 {
		return nil, ErrEmptyHeader
	}

	header := strings.TrimRight(string(encoded[:32]), "\x00")
	if header == "" {
		return nil, ErrEmptyHeader
	}
	if header[0] != encodingVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, header[0])
	}

	types := header[1:]
	args := make(abi.Arguments, 0, len(types)*2+1)
	args = append(args, abi.Argument{Type: bytes32Type})
	for i := 0; i < len(types); i++ {
		t, ok := typeCache[types[i]]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, types[i])
		}
		args = append(args, abi.Argument{Type: bytes32Type}, abi.Argument{Type: t})
	}

	values, err := args.UnpackValues(encoded)
	if err != nil {
		return nil, fmt.Errorf("cannot unpack parameters: %w", err)
	}

	for i := 0; i < len(types); i++ {
		nameRaw, ok := values[1+2*i].([32]byte)
		if !ok {
			return nil, fmt.Errorf("parameter %d has an invalid name", i)
		}
		name := strings.TrimRight(string(nameRaw[:]), "\x00")
		out[name] = render(types[i], values[2+2*i])
	}
	return out, nil
}

func render(t byte, v interface{}) string {
	switch t {
	case 'b':
		b := v.([32]byte)
		return strings.TrimRight(string(b[:]), "\x00")
	case 's':
		return v.(string)
	case 'a':
		return v.(common.Address).Hex()
	case 'u', 'i':
		return v.(*big.Int).String()
	case 'B':
		return hexutil.Encode(v.([]byte))
	}
	return fmt.Sprintf("%v", v)
}

// Encode is the inverse of Decode. Parameters are written in the given order.
func Encode(params []Parameter) ([]byte, error) {
	header := []byte{encodingVersion}
	args := abi.Arguments{{Type: bytes32Type}}
	values := []interface{}{}

	for _, p := range params {
		t, ok := typeCache[p.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
		}
		if len(p.Name) > 32 {
			return nil, fmt.Errorf("parameter name %q is longer than 32 bytes", p.Name)
		}
		value, err := parse(p.Type, p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}

		header = append(header, p.Type)
		args = append(args, abi.Argument{Type: bytes32Type}, abi.Argument{Type: t})
		values = append(values, toBytes32(p.Name), value)
	}

	if len(header) > 32 {
		return nil, fmt.Errorf("too many parameters: %d", len(params))
	}

	return args.Pack(append([]interface{}{toBytes32(string(header))}, values...)...)
}

// EncodeMap encodes every value as a bytes32 when short enough, else as a
// string, with names sorted so the output is deterministic.
func EncodeMap(params map[string]string) ([]byte, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]Parameter, 0, len(names))
	for _, name := range names {
		t := byte('s')
		if len(params[name]) <= 32 {
			t = 'b'
		}
		list = append(list, Parameter{Type: t, Name: name, Value: params[name]})
	}
	return Encode(list)
}

func parse(t byte, value string) (interface{}, error) {
	switch t {
	case 'b':
		if len(value) > 32 {
			return nil, fmt.Errorf("value longer than 32 bytes")
		}
		return toBytes32(value), nil
	case 's':
		return value, nil
	case 'a':
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		return common.HexToAddress(value), nil
	case 'u', 'i':
		n, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", value)
		}
		if t == 'u' && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for uint256")
		}
		return n, nil
	case 'B':
		return hexutil.Decode(value)
	}
	return nil, ErrUnknownType
}

func toBytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}
