package typeddata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

func TestParseScalar(t *testing.T) {
	tests := []struct {
		raw     string
		matched bool
		kind    kind
		width   int
		target  *errors.Error
	}{
		{raw: "address", matched: true, kind: kindAddress},
		{raw: "bool", matched: true, kind: kindBool},
		{raw: "string", matched: true, kind: kindString},
		{raw: "bytes", matched: true, kind: kindBytes},
		{raw: "uint8", matched: true, kind: kindUint, width: 8},
		{raw: "uint256", matched: true, kind: kindUint, width: 256},
		{raw: "int128", matched: true, kind: kindInt, width: 128},
		{raw: "bytes1", matched: true, kind: kindFixedBytes, width: 1},
		{raw: "bytes32", matched: true, kind: kindFixedBytes, width: 32},
		{raw: "uint7", matched: true, target: errors.ErrInvalidNumericWidth},
		{raw: "uint0", matched: true, target: errors.ErrInvalidNumericWidth},
		{raw: "uint264", matched: true, target: errors.ErrInvalidNumericWidth},
		{raw: "int08", matched: true, target: errors.ErrInvalidNumericWidth},
		{raw: "bytes0", matched: true, target: errors.ErrInvalidBytesWidth},
		{raw: "bytes33", matched: true, target: errors.ErrInvalidBytesWidth},
		{raw: "bytes01", matched: true, target: errors.ErrInvalidBytesWidth},
		{raw: "uint", matched: false},
		{raw: "Person", matched: false},
		{raw: "Uint256", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ref, matched, err := parseScalar(tt.raw)
			assert.Equal(t, tt.matched, matched)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
				return
			}
			require.NoError(t, err)
			if !tt.matched {
				assert.Nil(t, ref)
				return
			}
			assert.Equal(t, tt.kind, ref.kind)
			assert.Equal(t, tt.width, ref.width)
		})
	}
}

func TestSplitArray(t *testing.T) {
	tests := []struct {
		raw     string
		elem    string
		length  int
		isArray bool
		wantErr bool
	}{
		{raw: "uint256", isArray: false},
		{raw: "uint256[]", elem: "uint256", length: -1, isArray: true},
		{raw: "Person[3]", elem: "Person", length: 3, isArray: true},
		{raw: "Person[0]", elem: "Person", length: 0, isArray: true},
		{raw: "bytes32[2][]", elem: "bytes32[2]", length: -1, isArray: true},
		{raw: "uint8[][4]", elem: "uint8[]", length: 4, isArray: true},
		{raw: "Person[03]", isArray: true, wantErr: true},
		{raw: "Person[-1]", isArray: true, wantErr: true},
		{raw: "Person[x]", isArray: true, wantErr: true},
		{raw: "[]", isArray: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			elem, length, isArray, err := splitArray(tt.raw)
			assert.Equal(t, tt.isArray, isArray)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.elem, elem)
			assert.Equal(t, tt.length, length)
		})
	}
}

func TestBaseType(t *testing.T) {
	assert.Equal(t, "Person", baseType("Person"))
	assert.Equal(t, "Person", baseType("Person[]"))
	assert.Equal(t, "Person", baseType("Person[2][]"))
	assert.Equal(t, "uint8", baseType("uint8[][3]"))
}

func TestBuildGraph_PrimaryType(t *testing.T) {
	g, err := buildGraph(mailTypes())
	require.NoError(t, err)
	assert.Equal(t, "Mail", g.primary)
	assert.Equal(t, []string{"Mail", "Person"}, g.names)
	assert.Equal(t, []string{"Person"}, g.closures["Mail"])
	assert.Empty(t, g.closures["Person"])
}

func TestBuildGraph_Errors(t *testing.T) {
	tests := []struct {
		name   string
		types  Types
		target *errors.Error
	}{
		{
			name:   "empty declaration set",
			types:  Types{},
			target: errors.ErrMissingPrimaryType,
		},
		{
			name: "two unreferenced types",
			types: Types{
				"A": {{Name: "x", Type: "uint256"}},
				"B": {{Name: "y", Type: "uint256"}},
			},
			target: errors.ErrAmbiguousPrimary,
		},
		{
			name: "self reference",
			types: Types{
				"Node": {{Name: "next", Type: "Node"}},
			},
			target: errors.ErrCircularReference,
		},
		{
			name: "self reference through array",
			types: Types{
				"Tree": {{Name: "children", Type: "Tree[]"}},
			},
			target: errors.ErrCircularReference,
		},
		{
			name: "mutual reference",
			types: Types{
				"A": {{Name: "b", Type: "B"}},
				"B": {{Name: "a", Type: "A"}},
			},
			target: errors.ErrCircularReference,
		},
		{
			name: "cycle below a primary",
			types: Types{
				"Root": {{Name: "a", Type: "A"}},
				"A":    {{Name: "b", Type: "B[2]"}},
				"B":    {{Name: "c", Type: "C"}},
				"C":    {{Name: "a", Type: "A"}},
			},
			target: errors.ErrCircularReference,
		},
		{
			name: "undeclared reference",
			types: Types{
				"Mail": {{Name: "from", Type: "Person"}},
			},
			target: errors.ErrUnknownType,
		},
		{
			name: "bare uint",
			types: Types{
				"Order": {{Name: "amount", Type: "uint"}},
			},
			target: errors.ErrUnknownType,
		},
		{
			name: "bad numeric width",
			types: Types{
				"Order": {{Name: "amount", Type: "uint12"}},
			},
			target: errors.ErrInvalidNumericWidth,
		},
		{
			name: "bad bytes width in array",
			types: Types{
				"Order": {{Name: "ids", Type: "bytes64[]"}},
			},
			target: errors.ErrInvalidBytesWidth,
		},
		{
			name: "duplicate field",
			types: Types{
				"Order": {{Name: "amount", Type: "uint256"}, {Name: "amount", Type: "uint128"}},
			},
			target: errors.ErrDuplicateField,
		},
		{
			name: "empty field name",
			types: Types{
				"Order": {{Name: "", Type: "uint256"}},
			},
			target: errors.ErrInvalidTypeName,
		},
		{
			name: "type name with parenthesis",
			types: Types{
				"Order(": {{Name: "amount", Type: "uint256"}},
			},
			target: errors.ErrInvalidTypeName,
		},
		{
			name: "field name with space",
			types: Types{
				"Order": {{Name: "the amount", Type: "uint256"}},
			},
			target: errors.ErrInvalidTypeName,
		},
		{
			name: "type name shadows scalar",
			types: Types{
				"bytes32": {{Name: "x", Type: "uint256"}},
			},
			target: errors.ErrInvalidTypeName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildGraph(tt.types)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, errors.IsSchemaError(err))
		})
	}
}

func TestBuildGraph_CircularMessage(t *testing.T) {
	_, err := buildGraph(Types{
		"A": {{Name: "b", Type: "B"}},
		"B": {{Name: "a", Type: "A"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular type reference to")
}

func TestBuildGraph_SharedDependency(t *testing.T) {
	// diamond: Root -> Left, Right -> Leaf
	g, err := buildGraph(Types{
		"Root":  {{Name: "l", Type: "Left"}, {Name: "r", Type: "Right"}},
		"Left":  {{Name: "leaf", Type: "Leaf"}},
		"Right": {{Name: "leaf", Type: "Leaf"}, {Name: "leaves", Type: "Leaf[]"}},
		"Leaf":  {{Name: "v", Type: "uint256"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Root", g.primary)
	assert.Equal(t, []string{"Leaf", "Left", "Right"}, g.closures["Root"])
	assert.Equal(t, []string{"Leaf"}, g.closures["Right"])
	assert.Equal(t, []string{"Leaf"}, g.links["Right"])
}

func TestPrimaryType(t *testing.T) {
	primary, err := PrimaryType(mailTypes())
	require.NoError(t, err)
	assert.Equal(t, "Mail", primary)

	_, err = PrimaryType(Types{"A": nil, "B": nil})
	assert.ErrorIs(t, err, errors.ErrAmbiguousPrimary)
}
