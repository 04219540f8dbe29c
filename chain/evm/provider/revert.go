package provider

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// ContractCaller replays calls against a past block.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// revertReason replays tx from sender at the block it was mined in and explains why it
// reverted. Require messages of the lottery, such as "Not enough ETH!", are decoded from
// their Error(string) payload; otherwise the replay error itself is the reason.
func revertReason(ctx context.Context, caller ContractCaller, sender common.Address, tx *types.Transaction, block *big.Int) string {
	_, err := caller.CallContract(ctx, ethereum.CallMsg{
		From:     sender,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}, block)
	switch {
	case err == nil:
		// the call succeeds on replay when the transaction ran out of gas
		return "no reason returned on replay, likely out of gas"
	case strings.Contains(err.Error(), "missing trie node"):
		return "replay needs an archive node: " + err.Error()
	}

	if reason, ok := decodeRevert(err); ok {
		return reason
	}

	return err.Error()
}

// decodeRevert returns the revert payload carried by a JSON-RPC error, decoded when it is a
// Solidity Error(string). It reports false when err has no payload.
func decodeRevert(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}

	data, ok := dataErr.ErrorData().(string)
	if !ok || data == "" {
		return "", false
	}

	if raw, derr := hexutil.Decode(data); derr == nil {
		if reason, uerr := abi.UnpackRevert(raw); uerr == nil {
			return reason, true
		}
	}

	return data, true
}
