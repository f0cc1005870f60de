package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

// countingUpstream wraps a Static book and counts calls.
func countingUpstream(t *testing.T) (typeddata.NameResolver, *atomic.Int32) {
	static := newTestStatic(t)
	var calls atomic.Int32
	return typeddata.NameResolverFunc(func(ctx context.Context, name string) (common.Address, error) {
		calls.Add(1)
		return static.ResolveName(ctx, name)
	}), &calls
}

func TestCached_MissThenHit(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	c := NewCached(client, upstream)
	ctx := context.Background()

	addr, err := c.ResolveName(ctx, "alice.eth")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(aliceHex), addr)
	assert.Equal(t, int32(1), calls.Load())

	cached, err := mr.Get(DefaultKeyPrefix + "alice.eth")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(aliceHex).Hex(), cached)
	assert.Equal(t, DefaultTTL, mr.TTL(DefaultKeyPrefix+"alice.eth"))

	addr, err = c.ResolveName(ctx, "ALICE.eth")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(aliceHex), addr)
	assert.Equal(t, int32(1), calls.Load(), "second lookup should hit the cache")
}

func TestCached_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	c := NewCached(client, upstream, WithTTL(time.Minute))
	ctx := context.Background()

	_, err := c.ResolveName(ctx, "bob.eth")
	require.NoError(t, err)

	mr.FastForward(time.Minute + time.Second)

	_, err = c.ResolveName(ctx, "bob.eth")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCached_UpstreamErrorNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	c := NewCached(client, upstream)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ResolveName(ctx, "carol.eth")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, mr.Exists(DefaultKeyPrefix+"carol.eth"))
}

func TestCached_MalformedEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	core, logs := observer.New(zap.WarnLevel)
	c := NewCached(client, upstream, WithLogger(zap.New(core)))

	require.NoError(t, mr.Set(DefaultKeyPrefix+"alice.eth", "not-an-address"))

	addr, err := c.ResolveName(context.Background(), "alice.eth")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(aliceHex), addr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("discarding malformed cached address").Len())

	// repaired by the write-back
	cached, _ := mr.Get(DefaultKeyPrefix + "alice.eth")
	assert.Equal(t, common.HexToAddress(aliceHex).Hex(), cached)
}

func TestCached_RedisUnavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	core, logs := observer.New(zap.WarnLevel)
	c := NewCached(client, upstream, WithLogger(zap.New(core)))

	mr.Close()

	addr, err := c.ResolveName(context.Background(), "bob.eth")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(bobHex), addr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("name cache unavailable, falling back to upstream").Len())
}

func TestCached_Invalidate(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	c := NewCached(client, upstream, WithKeyPrefix("test:"))
	ctx := context.Background()

	_, err := c.ResolveName(ctx, "alice.eth")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:alice.eth"))

	require.NoError(t, c.Invalidate(ctx, "Alice.eth"))
	assert.False(t, mr.Exists("test:alice.eth"))

	_, err = c.ResolveName(ctx, "alice.eth")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCached_BatchResolution(t *testing.T) {
	_, client := setupTestRedis(t)
	upstream, calls := countingUpstream(t)
	c := NewCached(client, upstream)

	enc := typeddata.MustNewEncoder(typeddata.Types{
		"Group": {{Name: "members", Type: "address[]"}},
	})
	members := make([]any, 0, 30)
	for i := 0; i < 30; i++ {
		members = append(members, []string{"alice.eth", "bob.eth", "exchange.eth"}[i%3])
	}

	_, resolved, err := enc.ResolveNames(context.Background(), nil, map[string]any{"members": members}, c)
	require.NoError(t, err)
	assert.Len(t, resolved["members"], 30)
	assert.Equal(t, int32(3), calls.Load(), "each distinct name should be looked up once")
}
