package typeddata

import (
	"encoding/json"
	"fmt"
	stdmath "math"
	"math/big"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// maxSafeFloat is the largest integer a float64 represents exactly.
const maxSafeFloat = 1<<53 - 1

const wordSize = 32

// encodeScalar produces the 32-byte word for a scalar value.
func encodeScalar(ref *typeRef, value any, path string) ([]byte, error) {
	switch ref.kind {
	case kindAddress:
		addr, err := toAddress(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidAddress, path, ref.raw, value, err)
		}
		return common.LeftPadBytes(addr.Bytes(), wordSize), nil

	case kindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, nil)
		}
		word := make([]byte, wordSize)
		if b {
			word[wordSize-1] = 1
		}
		return word, nil

	case kindString:
		s, ok := value.(string)
		if !ok {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, nil)
		}
		return crypto.Keccak256([]byte(s)), nil

	case kindBytes:
		raw, err := toBytes(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		return crypto.Keccak256(raw), nil

	case kindFixedBytes:
		raw, err := toBytes(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		if len(raw) != ref.width {
			return nil, invalid(errors.ErrInvalidBytesLength, path, ref.raw, value, nil).
				WithMessagef("invalid length for %s at %s: got %d bytes", ref.raw, path, len(raw))
		}
		word := make([]byte, wordSize)
		copy(word, raw)
		return word, nil

	case kindUint, kindInt:
		n, err := toBigInt(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		if !inRange(ref, n) {
			return nil, invalid(errors.ErrValueOutOfBounds, path, ref.raw, value, nil)
		}
		// U256Bytes mutates its argument.
		return math.U256Bytes(new(big.Int).Set(n)), nil
	}
	return nil, unknownType(ref.raw)
}

func inRange(ref *typeRef, n *big.Int) bool {
	if ref.kind == kindUint {
		return n.Sign() >= 0 && n.BitLen() <= ref.width
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(ref.width-1))
	if n.Sign() >= 0 {
		return n.Cmp(limit) < 0
	}
	return n.Cmp(limit.Neg(limit)) >= 0
}

// toBigInt accepts the integer forms callers commonly hold. The returned
// value may alias the input and must not be mutated.
func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return v, nil
	case big.Int:
		return &v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float32:
		return floatToBigInt(float64(v))
	case float64:
		return floatToBigInt(v)
	case string:
		return parseIntString(v)
	case json.Number:
		return parseIntString(string(v))
	case decimal.Decimal:
		return decimalToBigInt(v)
	case *decimal.Decimal:
		if v == nil {
			return nil, fmt.Errorf("nil decimal")
		}
		return decimalToBigInt(*v)
	case *math.HexOrDecimal256:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return (*big.Int)(v), nil
	case *hexutil.Big:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return v.ToInt(), nil
	case math.HexOrDecimal64:
		return new(big.Int).SetUint64(uint64(v)), nil
	case hexutil.Uint64:
		return new(big.Int).SetUint64(uint64(v)), nil
	}
	return nil, fmt.Errorf("unsupported integer value of type %T", value)
}

func floatToBigInt(f float64) (*big.Int, error) {
	if f != stdmath.Trunc(f) || stdmath.Abs(f) > maxSafeFloat {
		return nil, fmt.Errorf("float %v is not a safe integer", f)
	}
	return big.NewInt(int64(f)), nil
}

func decimalToBigInt(d decimal.Decimal) (*big.Int, error) {
	if !d.IsInteger() {
		return nil, fmt.Errorf("decimal %s has a fractional part", d.String())
	}
	return d.BigInt(), nil
}

// parseIntString parses decimal or 0x-prefixed hex with an optional leading
// minus sign.
func parseIntString(s string) (*big.Int, error) {
	body := strings.TrimPrefix(s, "-")
	neg := len(body) != len(s)

	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	}
	if body == "" || body[0] == '+' || body[0] == '-' {
		return nil, fmt.Errorf("invalid integer string %q", s)
	}

	n, ok := new(big.Int).SetString(body, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer string %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func toAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *v, nil
	case string:
		return parseAddress(v)
	case []byte:
		if len(v) != common.AddressLength {
			return common.Address{}, fmt.Errorf("address must be %d bytes, got %d", common.AddressLength, len(v))
		}
		return common.BytesToAddress(v), nil
	}
	return common.Address{}, fmt.Errorf("unsupported address value of type %T", value)
}

// parseAddress accepts a 0x-prefixed 20-byte hex address. Mixed case input
// must carry a valid EIP-55 checksum.
func parseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("address %q missing 0x prefix", s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("malformed address %q", s)
	}

	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("bad address checksum %q", s)
	}
	return addr, nil
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	case *common.Hash:
		if v == nil {
			return nil, fmt.Errorf("nil hash")
		}
		return v.Bytes(), nil
	case string:
		if !strings.HasPrefix(v, "0x") && !strings.HasPrefix(v, "0X") {
			return nil, fmt.Errorf("bytes string %q missing 0x prefix", v)
		}
		return hexutil.Decode("0x" + v[2:])
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported bytes value of type %T", value)
}

// toSlice views any slice or array as []any.
func toSlice(value any) ([]any, error) {
	if items, ok := value.([]any); ok {
		return items, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected array, got %T", value)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// toStruct views a string-keyed map as map[string]any.
func toStruct(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		if m == nil {
			return nil, fmt.Errorf("nil struct value")
		}
		return m, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, fmt.Errorf("expected struct object, got %T", value)
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, nil
}

// invalid builds a value error located at path.
func invalid(base *errors.Error, path, typ string, value any, cause error) *errors.Error {
	err := base.
		WithMessagef("%s at %s (%s)", base.Message, path, typ).
		WithDetails(map[string]string{
			"path":  path,
			"type":  typ,
			"value": describe(value),
		})
	if cause != nil {
		err.Cause = cause
	}
	return err
}

const maxDescribed = 96

func describe(value any) string {
	if rv := reflect.ValueOf(value); !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return "<nil>"
	}

	var s string
	switch v := value.(type) {
	case []byte:
		s = hexutil.Encode(v)
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > maxDescribed {
		// cut on a rune boundary
		n := maxDescribed
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n] + "..."
	}
	return s
}
