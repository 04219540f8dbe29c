package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer returns a JSON-RPC server answering eth_blockNumber, a pending
// eth_getTransactionReceipt and, when healthyBalance is set, eth_getBalance with 0x64.
func newRPCServer(t *testing.T, healthyBalance bool) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "eth_blockNumber":
			resp["result"] = "0x10"
		case req.Method == "eth_getBalance" && healthyBalance:
			resp["result"] = "0x64"
		case req.Method == "eth_getTransactionReceipt":
			resp["result"] = nil
		default:
			resp["error"] = map[string]any{"code": -32000, "message": "unavailable"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     1,
		Delay:        time.Millisecond,
		Timeout:      5 * time.Second,
		DialAttempts: 1,
		DialDelay:    time.Millisecond,
		DialTimeout:  5 * time.Second,
	}
}

func TestNewMultiClient_NoRPCs(t *testing.T) {
	t.Parallel()

	_, err := NewMultiClient(logger.Test(t), "sepolia", nil)
	require.ErrorContains(t, err, "no RPCs provided")
}

func TestNewMultiClient_SkipsUnhealthy(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	_, err := NewMultiClient(logger.Test(t), "sepolia",
		[]RPC{{Name: "broken", URL: broken.URL}},
		WithRetryConfig(testRetryConfig()),
	)
	require.EqualError(t, err, `no valid RPC clients created for network "sepolia"`)

	healthy := newRPCServer(t, true)
	mc, err := NewMultiClient(logger.Test(t), "sepolia",
		[]RPC{{Name: "broken", URL: broken.URL}, {Name: "healthy", URL: healthy.URL}},
		WithRetryConfig(testRetryConfig()),
	)
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	assert.Equal(t, []string{"healthy"}, mc.Endpoints())
}

func TestMultiClient_FailsOverToBackup(t *testing.T) {
	t.Parallel()

	primary := newRPCServer(t, false)
	backup := newRPCServer(t, true)

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	mc, err := NewMultiClient(lggr, "sepolia",
		[]RPC{{Name: "primary", URL: primary.URL}, {Name: "backup", URL: backup.URL}},
		WithRetryConfig(testRetryConfig()),
	)
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	require.Equal(t, []string{"primary", "backup"}, mc.Endpoints())

	balance, err := mc.BalanceAt(context.Background(), common.HexToAddress("0x01"), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), balance)

	// the backup served the call and is tried first from now on
	assert.Equal(t, []string{"backup", "primary"}, mc.Endpoints())
	assert.Equal(t, 1, logs.FilterMessage("Switching primary RPC").Len())
	assert.Equal(t, 1, logs.FilterMessage("RPC call failed, trying next endpoint").Len())

	_, err = mc.BalanceAt(context.Background(), common.HexToAddress("0x01"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("RPC call failed, trying next endpoint").Len())
}

func TestMultiClient_AllClientsFail(t *testing.T) {
	t.Parallel()

	srv := newRPCServer(t, false)

	mc, err := NewMultiClient(logger.Test(t), "sepolia",
		[]RPC{{Name: "only", URL: srv.URL}},
		WithRetryConfig(testRetryConfig()),
	)
	require.NoError(t, err)
	t.Cleanup(mc.Close)

	_, err = mc.BalanceAt(context.Background(), common.HexToAddress("0x01"), nil)
	require.ErrorContains(t, err, `all RPCs failed BalanceAt for network "sepolia"`)
	require.ErrorContains(t, err, "only: unavailable")
}

func TestMultiClient_PendingReceiptDoesNotFailOver(t *testing.T) {
	t.Parallel()

	first := newRPCServer(t, false)
	second := newRPCServer(t, false)

	lggr, logs := logger.TestObserved(t, zapcore.WarnLevel)
	mc, err := NewMultiClient(lggr, "sepolia",
		[]RPC{{Name: "first", URL: first.URL}, {Name: "second", URL: second.URL}},
		WithRetryConfig(testRetryConfig()),
	)
	require.NoError(t, err)
	t.Cleanup(mc.Close)

	_, err = mc.TransactionReceipt(context.Background(), common.HexToHash("0x01"))
	require.ErrorIs(t, err, ethereum.NotFound)
	assert.Zero(t, logs.Len())
	assert.Equal(t, []string{"first", "second"}, mc.Endpoints())
}

func TestEnsureTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := ensureTimeout(context.Background(), time.Minute)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	parent, pcancel := context.WithTimeout(context.Background(), time.Second)
	defer pcancel()
	want, _ := parent.Deadline()

	child, ccancel := ensureTimeout(parent, time.Hour)
	defer ccancel()
	got, _ := child.Deadline()
	assert.Equal(t, want, got)
}
