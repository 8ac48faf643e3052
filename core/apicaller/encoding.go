package apicaller

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

var (
	maxInt256  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// extract walks a dotted path through decoded json. Numeric segments index
// arrays. An empty path selects the whole body.
func extract(body interface{}, path string) (interface{}, bool) {
	if path == "" {
		return body, body != nil
	}

	current := body
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

// Encode converts value into the bytes32 of the given solidity type. Numbers
// are multiplied by times first and truncated towards zero.
func Encode(value interface{}, typ, times string) (common.Hash, error) {
	switch typ {
	case "int256", "uint256":
		n, err := toDecimal(value)
		if err != nil {
			return common.Hash{}, err
		}
		if times != "" {
			multiplier, err := decimal.NewFromString(times)
			if err != nil {
				return common.Hash{}, fmt.Errorf("invalid _times %q: %w", times, err)
			}
			n = n.Mul(multiplier)
		}
		return encodeInteger(n.BigInt(), typ == "int256")
	case "bool":
		b, err := toBool(value)
		if err != nil {
			return common.Hash{}, err
		}
		if b {
			return common.BigToHash(big.NewInt(1)), nil
		}
		return common.Hash{}, nil
	case "bytes32":
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		if len(s) > 32 {
			return common.Hash{}, fmt.Errorf("value %q does not fit in bytes32", s)
		}
		var out common.Hash
		copy(out[:], s)
		return out, nil
	case "":
		return common.Hash{}, fmt.Errorf("missing _type")
	}
	return common.Hash{}, fmt.Errorf("unsupported _type %q", typ)
}

func encodeInteger(n *big.Int, signed bool) (common.Hash, error) {
	if signed {
		if n.Cmp(maxInt256) > 0 || n.Cmp(minInt256) < 0 {
			return common.Hash{}, fmt.Errorf("%s overflows int256", n)
		}
		return common.BytesToHash(math.U256Bytes(new(big.Int).Set(n))), nil
	}
	if n.Sign() < 0 || n.Cmp(maxUint256) > 0 {
		return common.Hash{}, fmt.Errorf("%s does not fit in uint256", n)
	}
	return common.BigToHash(n), nil
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case bool:
		if v {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	}
	return decimal.Decimal{}, fmt.Errorf("value of type %T is not a number", value)
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case json.Number:
		f, err := v.Float64()
		return f != 0, err
	}
	return false, fmt.Errorf("value of type %T is not a bool", value)
}
