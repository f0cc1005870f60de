// Package typeddata computes EIP-712 structured-data signing digests.
//
// An Encoder is built once from a set of struct declarations. Construction
// resolves the reference graph, picks the single unreferenced primary type,
// rejects self and circular references, and precomputes every canonical type
// string and type hash. Per request the Encoder walks a value tree against the
// declarations and produces 32-byte words:
//
//	enc, err := typeddata.NewEncoder(typeddata.Types{
//		"Mail": {
//			{Name: "from", Type: "address"},
//			{Name: "to", Type: "address"},
//			{Name: "contents", Type: "string"},
//		},
//	})
//	digest, err := enc.Digest(domain, map[string]any{...})
//
// EncodeData returns the raw, unhashed struct encoding (type hash followed by
// one word per field). A struct embedded in another struct or in an array
// always contributes the hash of its raw encoding.
//
// Values are plain Go trees: structs are map[string]any, arrays are any slice
// or array, and scalars accept the common go-ethereum and math/big forms.
// Nothing is silently truncated or coerced; every failure is an
// *errors.Error carrying the offending path, declared type and value.
package typeddata
