package typeddata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// TypedData is the eth_signTypedData_v4 request object.
type TypedData struct {
	Types       Types          `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Domain      Domain         `json:"domain"`
	Message     map[string]any `json:"message"`
}

// GetPayload builds the wallet request for message under domain.
func GetPayload(domain Domain, types Types, message map[string]any) (*TypedData, error) {
	enc, err := NewEncoder(types)
	if err != nil {
		return nil, err
	}
	return enc.Payload(domain, message)
}

// Payload builds the wallet request for message. The EIP712Domain
// declaration is injected from domain and message leaves are normalized to
// JSON friendly forms: integers as decimal strings, bytes as 0x hex and
// addresses checksummed. The message is fully encoded once so an invalid
// value fails here rather than in the wallet.
func (e *Encoder) Payload(domain Domain, message map[string]any) (*TypedData, error) {
	normalized, err := e.Visit(message, normalizeLeaf)
	if err != nil {
		return nil, err
	}
	if _, err := e.Hash(normalized); err != nil {
		return nil, err
	}

	types := e.Types()
	types[DomainTypeName] = domain.Fields()

	return &TypedData{
		Types:       types,
		PrimaryType: e.primaryType,
		Domain:      domain.WithChainID(domain.ChainID),
		Message:     normalized.(map[string]any),
	}, nil
}

// normalizeLeaf never fails. A leaf it cannot convert is kept as-is so the
// subsequent encode reports it with its path.
func normalizeLeaf(typ string, value any) (any, error) {
	switch {
	case typ == "address":
		if addr, err := toAddress(value); err == nil {
			return addr.Hex(), nil
		}
	case typ == "bool" || typ == "string":
	case strings.HasPrefix(typ, "bytes"):
		if raw, err := toBytes(value); err == nil {
			return hexutil.Encode(raw), nil
		}
	default:
		if n, err := toBigInt(value); err == nil {
			return n.String(), nil
		}
	}
	return value, nil
}

// ParseTypedData decodes an eth_signTypedData_v4 JSON request. Numbers are
// kept as json.Number so large integers survive.
func ParseTypedData(data []byte) (*TypedData, error) {
	req, err := DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return req.TypedData()
}

// Request is a decoded eth_signTypedData_v4 request whose domain has not
// been validated. Address fields may still hold names awaiting resolution.
type Request struct {
	Types       Types          `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Domain      map[string]any `json:"domain"`
	Message     map[string]any `json:"message"`
}

// DecodeRequest decodes a request without interpreting the domain.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, errors.WrapWithCause(errors.ErrInvalidRequest, err, "decode typed data")
	}
	return &req, nil
}

// TypedData validates the domain and returns the request.
func (r *Request) TypedData() (*TypedData, error) {
	domain, err := DomainFromMap(r.Domain)
	if err != nil {
		return nil, err
	}
	return &TypedData{
		Types:       r.Types,
		PrimaryType: r.PrimaryType,
		Domain:      domain,
		Message:     r.Message,
	}, nil
}

// Encoder returns an Encoder for the message types. A declared EIP712Domain
// must match the domain's present keys exactly and is excluded from the
// message graph; a non-empty PrimaryType must match the resolved one.
func (td *TypedData) Encoder(opts ...Option) (*Encoder, error) {
	types, err := td.MessageTypes()
	if err != nil {
		return nil, err
	}
	enc, err := NewEncoder(types, opts...)
	if err != nil {
		return nil, err
	}
	if err := td.CheckPrimaryType(enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// MessageTypes returns a copy of the declarations without EIP712Domain,
// after checking a declared EIP712Domain against the domain.
func (td *TypedData) MessageTypes() (Types, error) {
	types := td.Types.Clone()
	if decl, ok := types[DomainTypeName]; ok {
		if want := td.Domain.Fields(); !fieldsEqual(decl, want) {
			return nil, errors.ErrDomainTypeMismatch.
				WithMessagef("EIP712Domain declaration %q does not match domain %q", FormatFields(decl), FormatFields(want))
		}
		delete(types, DomainTypeName)
	}
	return types, nil
}

// CheckPrimaryType reports whether a non-empty PrimaryType agrees with the
// primary type enc resolved.
func (td *TypedData) CheckPrimaryType(enc *Encoder) error {
	if td.PrimaryType != "" && td.PrimaryType != enc.PrimaryType() {
		return errors.ErrPrimaryTypeMismatch.
			WithMessagef("primary type mismatch: declared %q, resolved %q", td.PrimaryType, enc.PrimaryType()).
			WithDetails(map[string]string{"declared": td.PrimaryType, "resolved": enc.PrimaryType()})
	}
	return nil
}

// Hash returns the signing digest of the request.
func (td *TypedData) Hash() (common.Hash, error) {
	enc, err := td.Encoder()
	if err != nil {
		return common.Hash{}, err
	}
	return enc.Digest(td.Domain, td.Message)
}

// HashStruct returns the struct hash of the message.
func (td *TypedData) HashStruct() (common.Hash, error) {
	enc, err := td.Encoder()
	if err != nil {
		return common.Hash{}, err
	}
	return enc.Hash(td.Message)
}

// DomainSeparator returns the hash of the request domain.
func (td *TypedData) DomainSeparator() (common.Hash, error) {
	return HashDomain(td.Domain)
}

// String renders the request as indented JSON.
func (td *TypedData) String() string {
	data, err := json.MarshalIndent(td, "", "  ")
	if err != nil {
		return fmt.Sprintf("TypedData{primaryType: %s}", td.PrimaryType)
	}
	return string(data)
}
