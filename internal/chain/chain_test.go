package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadAddress(t *testing.T) {
	padded, err := padAddress("0x5F95a453e8c59b327c27Ef47bA45B4d9a78e1791")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000000000005f95a453e8c59b327c27ef47ba45b4d9a78e1791", padded)

	_, err = padAddress("0x1234")
	assert.Error(t, err)
}

func TestDecodeUint256(t *testing.T) {
	value, err := decodeUint256("0x0000000000000000000000000000000000000000000000000000000005f5e100")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), value.Int64())

	_, err = decodeUint256("0x")
	assert.ErrorIs(t, err, ErrMalformedReturn)
}

func TestDecodeAddress(t *testing.T) {
	addr, err := decodeAddress("0x0000000000000000000000005f95a453e8c59b327c27ef47ba45b4d9a78e1791")
	require.NoError(t, err)
	assert.Equal(t, "0x5f95a453e8c59b327c27ef47ba45b4d9a78e1791", addr)
}

func TestToDecimal(t *testing.T) {
	raw := big.NewInt(1_500_000)
	assert.Equal(t, "1.5", ToDecimal(raw, 6).String())
}

func rpcServer(handler func(method string) (string, int)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, status := handler(req.Method)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestEthCall(t *testing.T) {
	t.Run("returns hex result", func(t *testing.T) {
		server := rpcServer(func(string) (string, int) {
			return `{"jsonrpc":"2.0","id":1,"result":"0x01"}`, http.StatusOK
		})
		defer server.Close()

		client, err := NewClient(Options{RPCURL: server.URL})
		require.NoError(t, err)

		result, err := client.EthCall(context.Background(), "0xabc", "0x313ce567")
		require.NoError(t, err)
		assert.Equal(t, "0x01", result)
	})

	t.Run("empty return data is unsupported", func(t *testing.T) {
		server := rpcServer(func(string) (string, int) {
			return `{"jsonrpc":"2.0","id":1,"result":"0x"}`, http.StatusOK
		})
		defer server.Close()

		client, err := NewClient(Options{RPCURL: server.URL})
		require.NoError(t, err)

		_, err = client.EthCall(context.Background(), "0xabc", "0xc89039c5")
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("revert is unsupported not transport failure", func(t *testing.T) {
		server := rpcServer(func(string) (string, int) {
			return `{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted"}}`, http.StatusOK
		})
		defer server.Close()

		client, err := NewClient(Options{RPCURL: server.URL})
		require.NoError(t, err)

		_, err = client.EthCall(context.Background(), "0xabc", "0xc89039c5")
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("rpc error surfaces as failure", func(t *testing.T) {
		server := rpcServer(func(string) (string, int) {
			return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`, http.StatusOK
		})
		defer server.Close()

		client, err := NewClient(Options{RPCURL: server.URL})
		require.NoError(t, err)

		_, err = client.EthCall(context.Background(), "0xabc", "0x18160ddd")
		assert.ErrorIs(t, err, ErrRPCFailure)
	})
}
