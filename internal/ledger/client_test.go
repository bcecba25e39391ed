package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddressIsDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("nullifier"), {1, 2, 3}}
	a := DeriveAddress(seeds, "pool-v1")
	b := DeriveAddress(seeds, "pool-v1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Scope and seeds both matter.
	assert.NotEqual(t, a, DeriveAddress(seeds, "pool-v2"))
	assert.NotEqual(t, a, DeriveAddress([][]byte{[]byte("nullifier"), {1, 2, 4}}, "pool-v1"))
}

func TestMarkerAndVaultAddressesAreDistinct(t *testing.T) {
	var h [32]byte
	h[0] = 0xab
	assert.NotEqual(t,
		NullifierMarkerAddress("pool-v1", h),
		VaultAddress("pool-v1", h))
}

func newTestServer(t *testing.T, handler func(method string, params []any) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestSubmitTransaction(t *testing.T) {
	srv := newTestServer(t, func(method string, params []any) (any, *rpcError) {
		assert.Equal(t, "sendTransaction", method)
		require.Len(t, params, 1)
		raw, err := base64.StdEncoding.DecodeString(params[0].(string))
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad}, raw)
		return "sig-123", nil
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0)
	ref, err := c.SubmitTransaction(context.Background(), []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, "sig-123", ref)
}

func TestSubmitTransactionRPCError(t *testing.T) {
	srv := newTestServer(t, func(string, []any) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "blockhash expired"}
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0)
	_, err := c.SubmitTransaction(context.Background(), []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blockhash expired")
}

func TestGetAccountAbsentVsPresent(t *testing.T) {
	accounts := map[string]string{
		"present": base64.StdEncoding.EncodeToString([]byte{0x01}),
	}
	srv := newTestServer(t, func(method string, params []any) (any, *rpcError) {
		assert.Equal(t, "getAccountInfo", method)
		addr := params[0].(string)
		if data, ok := accounts[addr]; ok {
			return map[string]any{"value": map[string]any{"data": data}}, nil
		}
		return map[string]any{"value": nil}, nil
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0)

	data, err := c.GetAccount(context.Background(), "present")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)

	data, err = c.GetAccount(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestIsNullifierSpent(t *testing.T) {
	var spentHash [32]byte
	spentHash[31] = 0x7f
	marker := NullifierMarkerAddress("pool-v1", spentHash)

	srv := newTestServer(t, func(method string, params []any) (any, *rpcError) {
		if params[0].(string) == marker {
			return map[string]any{"value": map[string]any{"data": ""}}, nil
		}
		return map[string]any{"value": nil}, nil
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0)

	spent, err := c.IsNullifierSpent(context.Background(), "pool-v1", spentHash)
	require.NoError(t, err)
	assert.True(t, spent)

	var other [32]byte
	spent, err = c.IsNullifierSpent(context.Background(), "pool-v1", other)
	require.NoError(t, err)
	assert.False(t, spent)
}
