package typeddata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

type kind uint8

const (
	kindAddress kind = iota + 1
	kindBool
	kindString
	kindBytes
	kindFixedBytes
	kindUint
	kindInt
	kindArray
	kindStruct
)

// typeRef is a literal field type string resolved against a declaration set.
type typeRef struct {
	raw    string
	kind   kind
	width  int      // bits for integers, bytes for fixed bytes
	elem   *typeRef // array element type
	length int      // fixed array length, -1 for dynamic arrays
	name   string   // struct name
}

func (r *typeRef) isStruct() bool {
	return r.kind == kindStruct
}

func (r *typeRef) isScalar() bool {
	return r.kind != kindArray && r.kind != kindStruct
}

var (
	intPattern   = regexp.MustCompile(`^(u?int)([0-9]+)$`)
	bytesPattern = regexp.MustCompile(`^bytes([0-9]+)$`)
)

// parseScalar resolves raw as built-in scalar grammar. matched is false when
// raw is not scalar grammar at all; a malformed width is reported as an error.
func parseScalar(raw string) (ref *typeRef, matched bool, err error) {
	switch raw {
	case "address":
		return &typeRef{raw: raw, kind: kindAddress}, true, nil
	case "bool":
		return &typeRef{raw: raw, kind: kindBool}, true, nil
	case "string":
		return &typeRef{raw: raw, kind: kindString}, true, nil
	case "bytes":
		return &typeRef{raw: raw, kind: kindBytes}, true, nil
	}

	if m := intPattern.FindStringSubmatch(raw); m != nil {
		width, ok := parseCount(m[2])
		if !ok || width < 8 || width > 256 || width%8 != 0 {
			return nil, true, errors.ErrInvalidNumericWidth.
				WithMessagef("invalid numeric width %q", raw).
				WithDetail("type", raw)
		}
		k := kindUint
		if m[1] == "int" {
			k = kindInt
		}
		return &typeRef{raw: raw, kind: k, width: width}, true, nil
	}

	if m := bytesPattern.FindStringSubmatch(raw); m != nil {
		width, ok := parseCount(m[1])
		if !ok || width < 1 || width > 32 {
			return nil, true, errors.ErrInvalidBytesWidth.
				WithMessagef("invalid bytes width %q", raw).
				WithDetail("type", raw)
		}
		return &typeRef{raw: raw, kind: kindFixedBytes, width: width}, true, nil
	}

	return nil, false, nil
}

// isScalarGrammar reports whether raw is spelled like a scalar, valid or not.
func isScalarGrammar(raw string) bool {
	_, matched, _ := parseScalar(raw)
	return matched
}

// splitArray splits "T[K]" or "T[]" into its element type and bound. length
// is -1 for a dynamic array. ok is false when raw is not an array type.
func splitArray(raw string) (elem string, length int, ok bool, err error) {
	if !strings.HasSuffix(raw, "]") {
		return "", 0, false, nil
	}
	open := strings.LastIndexByte(raw, '[')
	if open <= 0 {
		return "", 0, true, unknownType(raw)
	}

	bound := raw[open+1 : len(raw)-1]
	if bound == "" {
		return raw[:open], -1, true, nil
	}
	n, valid := parseCount(bound)
	if !valid {
		return "", 0, true, errors.ErrUnknownType.
			WithMessagef("unknown type %q: invalid array bound", raw).
			WithDetail("type", raw)
	}
	return raw[:open], n, true, nil
}

// baseType strips every trailing array suffix from raw.
func baseType(raw string) string {
	for strings.HasSuffix(raw, "]") {
		open := strings.LastIndexByte(raw, '[')
		if open <= 0 {
			break
		}
		raw = raw[:open]
	}
	return raw
}

// parseCount parses a canonical decimal count: no sign, no leading zeros.
func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}

func unknownType(raw string) *errors.Error {
	return errors.ErrUnknownType.WithMessagef("unknown type %q", raw).WithDetail("type", raw)
}
