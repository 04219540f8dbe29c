package provider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

const (
	// DefaultConfirmTimeout bounds the wait for a receipt.
	DefaultConfirmTimeout = time.Minute
	// DefaultPollInterval is how often a live network is asked for a receipt.
	DefaultPollInterval = time.Second
)

// confirmer waits for the receipts of a network and turns reverted receipts into errors
// carrying the revert reason.
type confirmer struct {
	network string
	client  evm.OnchainClient
	signer  types.Signer
	timeout time.Duration
	poll    time.Duration
	// seal mines pending transactions before waiting. Only simulated chains set it.
	seal func()
}

func newConfirmer(network string, chainID *big.Int, client evm.OnchainClient, timeout, poll time.Duration) *confirmer {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	return &confirmer{
		network: network,
		client:  client,
		signer:  types.LatestSignerForChainID(chainID),
		timeout: timeout,
		poll:    poll,
	}
}

// Confirm implements evm.ConfirmFunc.
func (c *confirmer) Confirm(tx *types.Transaction) (uint64, error) {
	if tx == nil {
		return 0, fmt.Errorf("no transaction to confirm on %s", c.network)
	}

	if c.seal != nil {
		c.seal()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	receipt, err := c.waitReceipt(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("tx %s not confirmed on %s: %w", tx.Hash().Hex(), c.network, err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason := "sender unknown, replay skipped"
		if sender, serr := types.Sender(c.signer, tx); serr == nil {
			reason = revertReason(ctx, c.client, sender, tx, receipt.BlockNumber)
		}

		return 0, fmt.Errorf("tx %s reverted on %s: %s", tx.Hash().Hex(), c.network, reason)
	}

	return receipt.BlockNumber.Uint64(), nil
}

func (c *confirmer) waitReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
