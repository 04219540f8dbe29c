package provider

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned for a wallet key which is not a valid secp256k1 private key.
var ErrInvalidKey = errors.New("invalid wallet key")

// KeyedTransactor signs for the account of a hex encoded private key, as found in
// wallets.from_key. The key may carry a 0x prefix.
func KeyedTransactor(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		// the parse error can quote the key
		return nil, ErrInvalidKey
	}

	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// newDevAccount creates a throwaway account for a simulated chain.
func newDevAccount(chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}

	return bind.NewKeyedTransactorWithChainID(key, chainID)
}
