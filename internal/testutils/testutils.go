// Package testutils holds fixtures shared by the package tests.
package testutils

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
	"github.com/smartcontractkit/lottery-deployments/chain/evm/provider"
	"github.com/smartcontractkit/lottery-deployments/contracts"
)

// stubLotteryJSON is an artifact with the lottery ABI whose runtime code answers every call
// with 32 zero bytes. It exercises the deployment wiring without the compiled contract.
//
//go:embed testdata/StubLottery.json
var stubLotteryJSON []byte

// LotteryArtifactEnv points the contract tests at a compiled Lottery.json.
const LotteryArtifactEnv = "LOTTERY_ARTIFACT_DIR"

// NewSimChain starts a development chain with the deployer and nine funded users. It is
// closed when the test ends.
func NewSimChain(t *testing.T) evm.Chain {
	t.Helper()

	p := provider.NewSimChainProvider("development", provider.SimChainProviderConfig{
		NumAdditionalAccounts: provider.DefaultSimAccounts - 1,
	})
	t.Cleanup(func() { _ = p.Close() })

	c, err := p.Initialize(t.Context())
	require.NoError(t, err)

	return c
}

// StubLotteryArtifact returns the stub lottery artifact.
func StubLotteryArtifact(t *testing.T) *contracts.Artifact {
	t.Helper()

	a, err := contracts.ParseArtifact(stubLotteryJSON)
	require.NoError(t, err)

	return a
}

// WriteStubBuildDir writes the stub artifact as Lottery.json into a temp build dir.
func WriteStubBuildDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lottery.json"), stubLotteryJSON, 0o600))

	return dir
}

// CompiledLotteryArtifact loads the compiled lottery from LOTTERY_ARTIFACT_DIR, skipping the
// test when it is not available.
func CompiledLotteryArtifact(t *testing.T) *contracts.Artifact {
	t.Helper()

	dir := os.Getenv(LotteryArtifactEnv)
	if dir == "" {
		dir = filepath.Join("..", contracts.DefaultBuildDir)
	}

	a, err := contracts.LoadArtifact(dir, "Lottery")
	if err != nil {
		t.Skipf("compiled Lottery artifact not available in %s: %v", dir, err)
	}

	return a
}
