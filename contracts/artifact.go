package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultBuildDir is where the contract toolchain writes its artifacts.
const DefaultBuildDir = "build/contracts"

// ErrArtifactNotFound is returned when no artifact exists for a contract.
var ErrArtifactNotFound = errors.New("contract artifact not found")

// Optimizer holds the solc optimizer settings of a build.
type Optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// Compiler holds the compiler settings of a build.
type Compiler struct {
	Version   string    `json:"version"`
	Optimizer Optimizer `json:"optimizer"`
}

// Artifact is a compiled contract as produced by the contract toolchain.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	Source       string          `json:"source"`
	SourcePath   string          `json:"sourcePath"`
	Compiler     Compiler        `json:"compiler"`
}

// LoadArtifact reads <dir>/<name>.json.
func LoadArtifact(dir, name string) (*Artifact, error) {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	return ParseArtifact(data)
}

// ParseArtifact decodes and validates artifact JSON.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if a.ContractName == "" {
		return nil, errors.New("artifact has no contractName")
	}
	if len(a.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", a.ContractName)
	}
	if _, err := a.Code(); err != nil {
		return nil, err
	}

	return &a, nil
}

// ParsedABI parses the artifact ABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(a.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi of %s: %w", a.ContractName, err)
	}

	return parsed, nil
}

// Code returns the creation bytecode.
func (a *Artifact) Code() ([]byte, error) {
	bc := a.Bytecode
	if !strings.HasPrefix(bc, "0x") {
		bc = "0x" + bc
	}
	code, err := hexutil.Decode(bc)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode in artifact %s: %w", a.ContractName, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("artifact %s has empty bytecode", a.ContractName)
	}

	return code, nil
}

// CompilerVersion returns the compiler version prefixed with "v" as block explorers expect.
func (a *Artifact) CompilerVersion() string {
	if a.Compiler.Version == "" || strings.HasPrefix(a.Compiler.Version, "v") {
		return a.Compiler.Version
	}

	return "v" + a.Compiler.Version
}
