package typeddata

import (
	"fmt"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// VisitFunc maps one scalar leaf. typ is the declared scalar type, e.g.
// "address" or "uint256".
type VisitFunc func(typ string, value any) (any, error)

// Visit rebuilds value, declared as the primary type, with every scalar leaf
// replaced by fn's result. Structs come back as map[string]any and arrays as
// []any. The input is not modified.
func (e *Encoder) Visit(value any, fn VisitFunc) (any, error) {
	return e.VisitType(e.primaryType, value, fn)
}

// VisitType is Visit for an arbitrary declared or built-in type string.
func (e *Encoder) VisitType(typ string, value any, fn VisitFunc) (any, error) {
	ref, err := e.resolve(typ)
	if err != nil {
		return nil, err
	}
	return e.visit(ref, value, typ, fn)
}

func (e *Encoder) visit(ref *typeRef, value any, path string, fn VisitFunc) (any, error) {
	if ref.isScalar() {
		return fn(ref.raw, value)
	}

	if ref.kind == kindArray {
		items, err := toSlice(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		if ref.length >= 0 && len(items) != ref.length {
			return nil, invalid(errors.ErrArrayLengthMismatch, path, ref.raw, value, nil).
				WithMessagef("array length mismatch, expected length %d at %s: got %d", ref.length, path, len(items))
		}
		out := make([]any, len(items))
		for i, item := range items {
			mapped, err := e.visit(ref.elem, item, fmt.Sprintf("%s[%d]", path, i), fn)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
		}
		return out, nil
	}

	m, err := toStruct(value)
	if err != nil {
		return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
	}
	fields := e.types[ref.name]
	declared := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		declared[field.Name] = struct{}{}
	}
	if err := checkStructKeys(m, fields, declared, path); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for _, field := range fields {
		fieldRef, err := e.resolve(field.Type)
		if err != nil {
			return nil, err
		}
		mapped, err := e.visit(fieldRef, m[field.Name], path+"."+field.Name, fn)
		if err != nil {
			return nil, err
		}
		out[field.Name] = mapped
	}
	return out, nil
}
