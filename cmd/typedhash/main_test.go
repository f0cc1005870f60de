package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/config"
	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/service"
	commonconfig "github.com/eidos-exchange/eidos/eidos-typeddata/pkg/config"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

const mailPayload = `{
	"types": {
		"EIP712Domain": [
			{"name": "name", "type": "string"},
			{"name": "version", "type": "string"},
			{"name": "chainId", "type": "uint256"},
			{"name": "verifyingContract", "type": "address"}
		],
		"Person": [{"name": "name", "type": "string"}, {"name": "wallet", "type": "address"}],
		"Mail": [{"name": "from", "type": "Person"}, {"name": "to", "type": "Person"}, {"name": "contents", "type": "string"}]
	},
	"primaryType": "Mail",
	"domain": {"name": "Ether Mail", "version": "1", "chainId": 1, "verifyingContract": "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"},
	"message": {
		"from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
		"to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
		"contents": "Hello, Bob!"
	}
}`

const mailDigest = "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2"

func newTestService(t *testing.T) service.SignatureService {
	t.Helper()
	svc, err := service.NewSignatureService(&config.EIP712Config{
		Domain: commonconfig.EIP712DomainConfig{Name: "EidosExchange", Version: "1", ChainID: 31337},
	})
	require.NoError(t, err)
	return svc
}

func writePayload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mail.json")
	require.NoError(t, os.WriteFile(path, []byte(mailPayload), 0o600))
	return path
}

func decodeOutput(t *testing.T, buf *bytes.Buffer) digestOutput {
	t.Helper()
	var out digestOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRunOnce_Digest(t *testing.T) {
	var buf bytes.Buffer
	err := runOnce(context.Background(), newTestService(t), writePayload(t), "", "", &buf)
	require.NoError(t, err)

	out := decodeOutput(t, &buf)
	assert.Equal(t, "Mail", out.PrimaryType)
	assert.Equal(t, mailDigest, out.Digest)
	assert.Nil(t, out.Verified)
}

func TestRunOnce_Verify(t *testing.T) {
	key, err := crypto.PrivateKeyFromHex("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	wallet := crypto.AddressFromPrivateKey(key)

	sig, err := crypto.SignDigest(key, common.HexToHash(mailDigest).Bytes())
	require.NoError(t, err)
	sigHex := crypto.FormatSignature(sig)

	t.Run("expected signer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runOnce(context.Background(), newTestService(t), writePayload(t), sigHex, wallet, &buf))
		out := decodeOutput(t, &buf)
		require.NotNil(t, out.Verified)
		assert.True(t, *out.Verified)
	})

	t.Run("recovered signer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runOnce(context.Background(), newTestService(t), writePayload(t), sigHex, "", &buf))
		out := decodeOutput(t, &buf)
		assert.Equal(t, common.HexToAddress(wallet), common.HexToAddress(out.Signer))
		// recovery alone proves nothing about the expected signer
		assert.Nil(t, out.Verified)
	})

	t.Run("recovered signer of another payload", func(t *testing.T) {
		other, err := crypto.SignDigest(key, common.HexToHash("0x01").Bytes())
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, runOnce(context.Background(), newTestService(t), writePayload(t), crypto.FormatSignature(other), "", &buf))
		out := decodeOutput(t, &buf)
		assert.NotEqual(t, common.HexToAddress(wallet), common.HexToAddress(out.Signer))
		assert.Nil(t, out.Verified)
	})

	t.Run("wrong signer", func(t *testing.T) {
		var buf bytes.Buffer
		err := runOnce(context.Background(), newTestService(t), writePayload(t), sigHex, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", &buf)
		assert.ErrorIs(t, err, errors.ErrSignatureMismatch)
		out := decodeOutput(t, &buf)
		require.NotNil(t, out.Verified)
		assert.False(t, *out.Verified)
	})

	t.Run("malformed signature", func(t *testing.T) {
		var buf bytes.Buffer
		err := runOnce(context.Background(), newTestService(t), writePayload(t), "0x1234", "", &buf)
		assert.ErrorIs(t, err, crypto.ErrInvalidSignatureLength)
	})
}

func TestRunOnce_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := runOnce(context.Background(), newTestService(t), filepath.Join(t.TempDir(), "missing.json"), "", "", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

// =============================================================================
// run
// =============================================================================

func TestRun(t *testing.T) {
	t.Run("digest", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run([]string{"-payload", writePayload(t)}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())

		out := decodeOutput(t, &stdout)
		assert.Equal(t, mailDigest, out.Digest)
		// logs go to stderr and are flushed before returning
		assert.Contains(t, stderr.String(), "application stopped")
	})

	t.Run("invalid payload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"types":`), 0o600))

		var stdout, stderr bytes.Buffer
		code := run([]string{"-payload", path}, &stdout, &stderr)
		assert.Equal(t, 1, code)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), `"code":"INVALID_REQUEST"`)
		assert.Contains(t, stderr.String(), "typed data digest failed")
	})

	t.Run("unknown flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
	})

	t.Run("missing config file", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "load config")
	})
}
