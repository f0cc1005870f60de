package typeddata

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/logger"
)

// encodeFunc encodes one value of a fixed type. path locates the value in
// the tree for error reporting.
type encodeFunc func(value any, path string) ([]byte, error)

// Encoder computes canonical type strings, struct encodings, struct hashes
// and signing digests for one immutable declaration set. It is safe for
// concurrent use.
type Encoder struct {
	types       Types
	primaryType string
	graph       *typeGraph

	typeStrings  map[string]string      // own signature only
	encodedTypes map[string]string      // own signature plus sorted dependencies
	typeHashes   map[string]common.Hash // keccak256(encodedTypes[name])

	refs     sync.Map // literal type string -> *typeRef
	encoders sync.Map // literal type string -> encodeFunc

	logger *zap.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEncoder validates types and precomputes every type string and type hash.
// The declarations are copied; later mutation by the caller has no effect.
func NewEncoder(types Types, opts ...Option) (*Encoder, error) {
	e := &Encoder{
		types:  types.Clone(),
		logger: logger.L(),
	}
	for _, opt := range opts {
		opt(e)
	}

	g, err := buildGraph(e.types)
	if err != nil {
		e.logger.Debug("rejected type declarations",
			zap.Strings("types", e.types.Names()),
			zap.Error(err))
		return nil, err
	}
	e.graph = g
	e.primaryType = g.primary

	// every literal field type must parse, including array bounds
	for _, name := range g.names {
		for _, field := range e.types[name] {
			if _, err := e.resolve(field.Type); err != nil {
				return nil, err
			}
		}
	}

	e.typeStrings = make(map[string]string, len(g.names))
	for _, name := range g.names {
		e.typeStrings[name] = name + "(" + FormatFields(e.types[name]) + ")"
	}

	e.encodedTypes = make(map[string]string, len(g.names))
	e.typeHashes = make(map[string]common.Hash, len(g.names))
	for _, name := range g.names {
		var sb strings.Builder
		sb.WriteString(e.typeStrings[name])
		for _, sub := range g.closures[name] {
			sb.WriteString(e.typeStrings[sub])
		}
		e.encodedTypes[name] = sb.String()
		e.typeHashes[name] = crypto.HashWord([]byte(sb.String()))
	}

	e.logger.Debug("typed-data encoder ready",
		zap.String("primary_type", e.primaryType),
		zap.Int("type_count", len(g.names)))
	return e, nil
}

// MustNewEncoder is NewEncoder for static declarations; it panics on error.
func MustNewEncoder(types Types, opts ...Option) *Encoder {
	e, err := NewEncoder(types, opts...)
	if err != nil {
		panic(fmt.Sprintf("typeddata: %v", err))
	}
	return e
}

// PrimaryType returns the single declared type no other type references.
func (e *Encoder) PrimaryType() string {
	return e.primaryType
}

// Types returns a copy of the declarations.
func (e *Encoder) Types() Types {
	return e.types.Clone()
}

// TypeString returns the signature of name alone, e.g.
// "Mail(Person from,Person to,string contents)".
func (e *Encoder) TypeString(name string) (string, error) {
	s, ok := e.typeStrings[name]
	if !ok {
		return "", unknownType(name)
	}
	return s, nil
}

// EncodeType returns the canonical full type string of name: its own
// signature followed by the signatures of all its dependencies in
// lexicographic order.
func (e *Encoder) EncodeType(name string) (string, error) {
	s, ok := e.encodedTypes[name]
	if !ok {
		return "", unknownType(name)
	}
	return s, nil
}

// TypeHash returns keccak256(EncodeType(name)).
func (e *Encoder) TypeHash(name string) (common.Hash, error) {
	h, ok := e.typeHashes[name]
	if !ok {
		return common.Hash{}, unknownType(name)
	}
	return h, nil
}

// Dependencies returns the struct types name transitively references,
// sorted, excluding name.
func (e *Encoder) Dependencies(name string) ([]string, error) {
	deps, ok := e.graph.closures[name]
	if !ok {
		return nil, unknownType(name)
	}
	return append([]string(nil), deps...), nil
}

// EncodeData encodes value as typ. For a struct type the result is the raw
// concatenation of the type hash and one word per field, not hashed. For an
// array type it is the hash of the element words, and for a scalar its word.
func (e *Encoder) EncodeData(typ string, value any) ([]byte, error) {
	fn, err := e.encoderFor(typ)
	if err != nil {
		return nil, err
	}
	return fn(value, typ)
}

// Encode encodes value as the primary type.
func (e *Encoder) Encode(value any) ([]byte, error) {
	return e.EncodeData(e.primaryType, value)
}

// HashStruct returns keccak256(EncodeData(name, value)).
func (e *Encoder) HashStruct(name string, value any) (common.Hash, error) {
	data, err := e.EncodeData(name, value)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.HashWord(data), nil
}

// Hash returns the struct hash of value as the primary type.
func (e *Encoder) Hash(value any) (common.Hash, error) {
	return e.HashStruct(e.primaryType, value)
}

func (e *Encoder) resolve(raw string) (*typeRef, error) {
	if v, ok := e.refs.Load(raw); ok {
		return v.(*typeRef), nil
	}
	ref, err := e.parse(raw)
	if err != nil {
		return nil, err
	}
	v, _ := e.refs.LoadOrStore(raw, ref)
	return v.(*typeRef), nil
}

func (e *Encoder) parse(raw string) (*typeRef, error) {
	elem, length, isArray, err := splitArray(raw)
	if err != nil {
		return nil, err
	}
	if isArray {
		elemRef, err := e.resolve(elem)
		if err != nil {
			return nil, err
		}
		return &typeRef{raw: raw, kind: kindArray, elem: elemRef, length: length}, nil
	}

	if ref, matched, err := parseScalar(raw); matched {
		if err != nil {
			return nil, err
		}
		return ref, nil
	}
	if _, ok := e.types[raw]; ok {
		return &typeRef{raw: raw, kind: kindStruct, name: raw}, nil
	}
	return nil, unknownType(raw)
}

// encoderFor returns the memoized encode function for a literal type string.
func (e *Encoder) encoderFor(raw string) (encodeFunc, error) {
	if fn, ok := e.encoders.Load(raw); ok {
		return fn.(encodeFunc), nil
	}
	ref, err := e.resolve(raw)
	if err != nil {
		return nil, err
	}
	fn, err := e.compile(ref)
	if err != nil {
		return nil, err
	}
	actual, _ := e.encoders.LoadOrStore(raw, fn)
	return actual.(encodeFunc), nil
}

func (e *Encoder) compile(ref *typeRef) (encodeFunc, error) {
	switch ref.kind {
	case kindArray:
		return e.compileArray(ref)
	case kindStruct:
		return e.compileStruct(ref)
	default:
		return func(value any, path string) ([]byte, error) {
			return encodeScalar(ref, value, path)
		}, nil
	}
}

func (e *Encoder) compileArray(ref *typeRef) (encodeFunc, error) {
	elemFn, err := e.encoderFor(ref.elem.raw)
	if err != nil {
		return nil, err
	}
	hashElems := ref.elem.isStruct()

	return func(value any, path string) ([]byte, error) {
		items, err := toSlice(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		if ref.length >= 0 && len(items) != ref.length {
			return nil, invalid(errors.ErrArrayLengthMismatch, path, ref.raw, value, nil).
				WithMessagef("array length mismatch, expected length %d at %s: got %d", ref.length, path, len(items))
		}

		buf := make([]byte, 0, wordSize*len(items))
		for i, item := range items {
			word, err := elemFn(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			if hashElems {
				word = crypto.Keccak256(word)
			}
			buf = append(buf, word...)
		}
		return crypto.Keccak256(buf), nil
	}, nil
}

func (e *Encoder) compileStruct(ref *typeRef) (encodeFunc, error) {
	fields := e.types[ref.name]
	typeHash := e.typeHashes[ref.name]
	fieldFns := make([]encodeFunc, len(fields))
	hashField := make([]bool, len(fields))
	declared := make(map[string]struct{}, len(fields))

	for i, field := range fields {
		fn, err := e.encoderFor(field.Type)
		if err != nil {
			return nil, err
		}
		fieldRef, err := e.resolve(field.Type)
		if err != nil {
			return nil, err
		}
		fieldFns[i] = fn
		hashField[i] = fieldRef.isStruct()
		declared[field.Name] = struct{}{}
	}

	return func(value any, path string) ([]byte, error) {
		m, err := toStruct(value)
		if err != nil {
			return nil, invalid(errors.ErrInvalidValue, path, ref.raw, value, err)
		}
		if err := checkStructKeys(m, fields, declared, path); err != nil {
			return nil, err
		}

		buf := make([]byte, 0, wordSize*(len(fields)+1))
		buf = append(buf, typeHash.Bytes()...)
		for i, field := range fields {
			word, err := fieldFns[i](m[field.Name], path+"."+field.Name)
			if err != nil {
				return nil, err
			}
			if hashField[i] {
				word = crypto.Keccak256(word)
			}
			buf = append(buf, word...)
		}
		return buf, nil
	}, nil
}

// checkStructKeys requires every declared field and rejects undeclared keys.
func checkStructKeys(m map[string]any, fields []Field, declared map[string]struct{}, path string) error {
	for _, field := range fields {
		if _, ok := m[field.Name]; !ok {
			p := path + "." + field.Name
			return errors.ErrMissingField.
				WithMessagef("missing field at %s (%s)", p, field.Type).
				WithDetails(map[string]string{"path": p, "type": field.Type})
		}
	}
	if len(m) == len(fields) {
		return nil
	}

	var extra []string
	for key := range m {
		if _, ok := declared[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	p := path + "." + extra[0]
	return errors.ErrUnexpectedField.
		WithMessagef("unexpected field at %s", p).
		WithDetails(map[string]string{"path": p, "field": extra[0]})
}
