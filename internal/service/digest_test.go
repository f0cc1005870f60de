package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/resolver"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

const (
	etherMailDigest    = "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2"
	etherMailSeparator = "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f"
	etherMailStruct    = "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e"
)

func etherMailJSON(contract, from, to string) []byte {
	return []byte(fmt.Sprintf(`{
		"types": {
			"EIP712Domain": [
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"}
			],
			"Person": [
				{"name": "name", "type": "string"},
				{"name": "wallet", "type": "address"}
			],
			"Mail": [
				{"name": "from", "type": "Person"},
				{"name": "to", "type": "Person"},
				{"name": "contents", "type": "string"}
			]
		},
		"primaryType": "Mail",
		"domain": {
			"name": "Ether Mail",
			"version": "1",
			"chainId": 1,
			"verifyingContract": %q
		},
		"message": {
			"from": {"name": "Cow", "wallet": %q},
			"to": {"name": "Bob", "wallet": %q},
			"contents": "Hello, Bob!"
		}
	}`, contract, from, to))
}

func literalEtherMail() []byte {
	return etherMailJSON(
		"0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
		"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
	)
}

func newMailResolver(t *testing.T) *resolver.Static {
	t.Helper()
	r, err := resolver.NewStatic(map[string]string{
		"mail.eth": "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		"cow.eth":  "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
		"bob.eth":  "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
	})
	require.NoError(t, err)
	return r
}

// =============================================================================
// Digest
// =============================================================================

func TestSignatureService_Digest(t *testing.T) {
	svc := newLiveService(t)

	td, err := typeddata.ParseTypedData(literalEtherMail())
	require.NoError(t, err)

	result, err := svc.Digest(context.Background(), td)
	require.NoError(t, err)
	assert.Equal(t, "Mail", result.PrimaryType)
	assert.Equal(t, etherMailDigest, result.Digest.Hex())
	assert.Equal(t, etherMailSeparator, result.DomainSeparator.Hex())
	assert.Equal(t, etherMailStruct, result.StructHash.Hex())
}

func TestSignatureService_Digest_PrimaryTypeMismatch(t *testing.T) {
	svc := newLiveService(t)

	td, err := typeddata.ParseTypedData(literalEtherMail())
	require.NoError(t, err)
	td.PrimaryType = "Person"

	_, err = svc.Digest(context.Background(), td)
	assert.ErrorIs(t, err, errors.ErrPrimaryTypeMismatch)
}

func TestSignatureService_DigestJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("literal addresses", func(t *testing.T) {
		svc := newLiveService(t)
		result, err := svc.DigestJSON(ctx, literalEtherMail())
		require.NoError(t, err)
		assert.Equal(t, etherMailDigest, result.Digest.Hex())
	})

	t.Run("resolves names", func(t *testing.T) {
		svc := newLiveService(t, WithResolver(newMailResolver(t)))
		result, err := svc.DigestJSON(ctx, etherMailJSON("mail.eth", "cow.eth", "Bob.ETH"))
		require.NoError(t, err)
		assert.Equal(t, etherMailDigest, result.Digest.Hex())
		assert.Equal(t, etherMailSeparator, result.DomainSeparator.Hex())

		require.NotNil(t, result.TypedData.Domain.VerifyingContract)
		assert.Equal(t, common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"), *result.TypedData.Domain.VerifyingContract)
	})

	t.Run("names without resolver", func(t *testing.T) {
		svc := newLiveService(t)
		_, err := svc.DigestJSON(ctx, etherMailJSON("mail.eth", "cow.eth", "bob.eth"))
		assert.ErrorIs(t, err, errors.ErrNameResolution)
	})

	t.Run("unknown name", func(t *testing.T) {
		svc := newLiveService(t, WithResolver(newMailResolver(t)))
		_, err := svc.DigestJSON(ctx, etherMailJSON("mail.eth", "carol.eth", "bob.eth"))
		assert.ErrorIs(t, err, errors.ErrNameResolution)
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := newLiveService(t)
		_, err := svc.DigestJSON(ctx, []byte(`{"types":`))
		assert.ErrorIs(t, err, errors.ErrInvalidRequest)
	})

	t.Run("primary type mismatch", func(t *testing.T) {
		svc := newLiveService(t)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(literalEtherMail(), &raw))
		raw["primaryType"] = "Person"
		data, err := json.Marshal(raw)
		require.NoError(t, err)

		_, err = svc.DigestJSON(ctx, data)
		assert.ErrorIs(t, err, errors.ErrPrimaryTypeMismatch)
	})
}

func TestSignatureService_DigestRecordsMetrics(t *testing.T) {
	svc := newLiveService(t)
	ok := metrics.DigestsTotal.WithLabelValues("Mail", metrics.ResultOK)
	failed := metrics.DigestsTotal.WithLabelValues("unknown", metrics.ResultError)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	_, err := svc.DigestJSON(context.Background(), literalEtherMail())
	require.NoError(t, err)
	_, err = svc.DigestJSON(context.Background(), []byte(`not json`))
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

// =============================================================================
// VerifyTypedData
// =============================================================================

func TestSignatureService_VerifyTypedData(t *testing.T) {
	key, wallet := generateTestKey(t)
	cfg := liveConfig()
	cfg.MockMode = true
	svc, err := NewSignatureService(cfg)
	require.NoError(t, err)

	td, err := typeddata.ParseTypedData(literalEtherMail())
	require.NoError(t, err)
	result, err := svc.Digest(context.Background(), td)
	require.NoError(t, err)

	sig, err := crypto.SignDigest(key, result.Digest.Bytes())
	require.NoError(t, err)

	// mock mode never skips generic requests
	assert.NoError(t, svc.VerifyTypedData(context.Background(), td, wallet, sig))
	err = svc.VerifyTypedData(context.Background(), td, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", sig)
	assert.ErrorIs(t, err, errors.ErrSignatureMismatch)
}

// =============================================================================
// Encoder Cache
// =============================================================================

func TestEncoderCache_ReusesEncoders(t *testing.T) {
	svc := newLiveService(t).(*signatureService)

	for i := 0; i < 3; i++ {
		_, err := svc.DigestJSON(context.Background(), literalEtherMail())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, svc.encoders.size())
}

func TestEncoderCache_Limit(t *testing.T) {
	cache := newEncoderCache(1, nil)

	first, err := cache.get(typeddata.Types{"A": {{Name: "x", Type: "uint8"}}})
	require.NoError(t, err)
	second, err := cache.get(typeddata.Types{"B": {{Name: "y", Type: "bool"}}})
	require.NoError(t, err)

	assert.Equal(t, "A", first.PrimaryType())
	assert.Equal(t, "B", second.PrimaryType())
	assert.Equal(t, 1, cache.size())
}

func TestEncoderCache_KeyIgnoresDeclarationOrder(t *testing.T) {
	a := typeddata.Types{
		"Person": {{Name: "name", Type: "string"}},
		"Mail":   {{Name: "from", Type: "Person"}},
	}
	b := typeddata.Types{
		"Mail":   {{Name: "from", Type: "Person"}},
		"Person": {{Name: "name", Type: "string"}},
	}
	keyA, err := cacheKey(a)
	require.NoError(t, err)
	keyB, err := cacheKey(b)
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)

	c := typeddata.Types{
		"Person": {{Name: "name", Type: "string"}},
		"Mail":   {{Name: "to", Type: "Person"}},
	}
	keyC, err := cacheKey(c)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyC)
}

func TestEncoderCache_KeyDistinguishesFieldNames(t *testing.T) {
	valid := typeddata.Types{"Mail": {{Name: "a", Type: "uint256"}, {Name: "b", Type: "uint256"}}}
	// formats to the same canonical string as valid
	spliced := typeddata.Types{"Mail": {{Name: "a,uint256 b", Type: "uint256"}}}

	validKey, err := cacheKey(valid)
	require.NoError(t, err)
	splicedKey, err := cacheKey(spliced)
	require.NoError(t, err)
	assert.NotEqual(t, validKey, splicedKey)

	cache := newEncoderCache(0, nil)
	_, err = cache.get(valid)
	require.NoError(t, err)

	enc, err := cache.get(spliced)
	assert.Nil(t, enc)
	assert.ErrorIs(t, err, errors.ErrInvalidTypeName)
	assert.Equal(t, 1, cache.size())
}

func TestEncoderCache_InvalidTypes(t *testing.T) {
	cache := newEncoderCache(0, nil)
	_, err := cache.get(typeddata.Types{"A": {{Name: "x", Type: "uint"}}})
	assert.Error(t, err)
	assert.True(t, errors.IsSchemaError(err))
	assert.Equal(t, 0, cache.size())
}

func TestEncoderCache_Concurrent(t *testing.T) {
	svc := newLiveService(t).(*signatureService)

	var mu sync.Mutex
	digests := make(map[common.Hash]int)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			result, err := svc.DigestJSON(ctx, literalEtherMail())
			if err != nil {
				return err
			}
			mu.Lock()
			digests[result.Digest]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, digests, 1)
	assert.Equal(t, 1, svc.encoders.size())
}
