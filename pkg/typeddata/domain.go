package typeddata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// DomainTypeName is the reserved struct name of the domain separator.
const DomainTypeName = "EIP712Domain"

// domainFields lists every permitted domain key in canonical order.
var domainFields = []Field{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// Domain is the domain separator record. A nil field is absent and takes no
// part in the domain type or its hash.
type Domain struct {
	Name              *string
	Version           *string
	ChainID           *big.Int
	VerifyingContract *common.Address
	Salt              *common.Hash
}

// WithName returns a copy of d with name set.
func (d Domain) WithName(name string) Domain {
	d.Name = &name
	return d
}

// WithVersion returns a copy of d with version set.
func (d Domain) WithVersion(version string) Domain {
	d.Version = &version
	return d
}

// WithChainID returns a copy of d with chainId set.
func (d Domain) WithChainID(chainID *big.Int) Domain {
	if chainID == nil {
		d.ChainID = nil
		return d
	}
	d.ChainID = new(big.Int).Set(chainID)
	return d
}

// WithVerifyingContract returns a copy of d with verifyingContract set.
func (d Domain) WithVerifyingContract(addr common.Address) Domain {
	d.VerifyingContract = &addr
	return d
}

// WithSalt returns a copy of d with salt set.
func (d Domain) WithSalt(salt common.Hash) Domain {
	d.Salt = &salt
	return d
}

// IsZero reports whether no domain key is present.
func (d Domain) IsZero() bool {
	return d.Name == nil && d.Version == nil && d.ChainID == nil && d.VerifyingContract == nil && d.Salt == nil
}

// DomainFromMap validates and normalizes a loosely typed domain. Unknown keys
// fail with INVALID_DOMAIN_KEY; nil values count as absent.
func DomainFromMap(m map[string]any) (Domain, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var d Domain
	for _, key := range keys {
		value := m[key]
		if value == nil {
			continue
		}
		path := DomainTypeName + "." + key

		switch key {
		case "name", "version":
			s, ok := value.(string)
			if !ok {
				return Domain{}, invalid(errors.ErrInvalidValue, path, "string", value, nil)
			}
			if key == "name" {
				d.Name = &s
			} else {
				d.Version = &s
			}

		case "chainId":
			n, err := toBigInt(value)
			if err != nil {
				return Domain{}, invalid(errors.ErrInvalidValue, path, "uint256", value, err)
			}
			if n.Sign() < 0 || n.BitLen() > 256 {
				return Domain{}, invalid(errors.ErrValueOutOfBounds, path, "uint256", value, nil)
			}
			d.ChainID = new(big.Int).Set(n)

		case "verifyingContract":
			addr, err := toAddress(value)
			if err != nil {
				return Domain{}, invalid(errors.ErrInvalidAddress, path, "address", value, err)
			}
			d.VerifyingContract = &addr

		case "salt":
			raw, err := toBytes(value)
			if err != nil || len(raw) != common.HashLength {
				return Domain{}, invalid(errors.ErrInvalidSalt, path, "bytes32", value, err)
			}
			salt := common.BytesToHash(raw)
			d.Salt = &salt

		default:
			return Domain{}, errors.ErrInvalidDomainKey.
				WithMessagef("invalid typed-data domain key %q", key).
				WithDetail("key", key)
		}
	}
	return d, nil
}

// Fields returns the domain struct declaration: the present keys in
// canonical order.
func (d Domain) Fields() []Field {
	present := [...]bool{
		d.Name != nil,
		d.Version != nil,
		d.ChainID != nil,
		d.VerifyingContract != nil,
		d.Salt != nil,
	}
	fields := make([]Field, 0, len(domainFields))
	for i, ok := range present {
		if ok {
			fields = append(fields, domainFields[i])
		}
	}
	return fields
}

// Types returns a declaration set holding only the domain struct.
func (d Domain) Types() Types {
	return Types{DomainTypeName: d.Fields()}
}

// Map returns the present keys with typed values.
func (d Domain) Map() map[string]any {
	m := make(map[string]any, len(domainFields))
	if d.Name != nil {
		m["name"] = *d.Name
	}
	if d.Version != nil {
		m["version"] = *d.Version
	}
	if d.ChainID != nil {
		m["chainId"] = new(big.Int).Set(d.ChainID)
	}
	if d.VerifyingContract != nil {
		m["verifyingContract"] = *d.VerifyingContract
	}
	if d.Salt != nil {
		m["salt"] = *d.Salt
	}
	return m
}

// HashDomain returns the domain separator:
// keccak256(typeHash(EIP712Domain) || encoded present keys).
func HashDomain(d Domain) (common.Hash, error) {
	enc, err := NewEncoder(d.Types())
	if err != nil {
		return common.Hash{}, err
	}
	return enc.HashStruct(DomainTypeName, d.Map())
}

// Separator is HashDomain(d).
func (d Domain) Separator() (common.Hash, error) {
	return HashDomain(d)
}

// MarshalJSON writes chainId as a JSON number, the contract as a checksummed
// address and the salt as 0x hex.
func (d Domain) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(domainFields))
	if d.Name != nil {
		m["name"] = *d.Name
	}
	if d.Version != nil {
		m["version"] = *d.Version
	}
	if d.ChainID != nil {
		m["chainId"] = json.Number(d.ChainID.String())
	}
	if d.VerifyingContract != nil {
		m["verifyingContract"] = d.VerifyingContract.Hex()
	}
	if d.Salt != nil {
		m["salt"] = d.Salt.Hex()
	}
	return json.Marshal(m)
}

// UnmarshalJSON applies DomainFromMap to a JSON object.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decode domain: %w", err)
	}
	parsed, err := DomainFromMap(m)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
