package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrArtifactNotFound is returned when an artifact source has no artifact for a contract.
var ErrArtifactNotFound = errors.New("contract artifact not found")

// Artifact is the compiled form of a contract needed to deploy it.
type Artifact struct {
	ContractName string        `json:"contractName"`
	SourceName   string        `json:"sourceName"`
	ABI          abi.ABI       `json:"abi"`
	Bytecode     hexutil.Bytes `json:"bytecode"`
}

// ArtifactSource resolves contract artifacts by contract name.
type ArtifactSource interface {
	Artifact(name string) (*Artifact, error)
}

// HardhatArtifacts reads artifacts from a hardhat project, laid out as
// <root>/artifacts/contracts/<Name>.sol/<Name>.json.
type HardhatArtifacts struct {
	Root string
}

var _ ArtifactSource = HardhatArtifacts{}

// Artifact implements ArtifactSource.
func (h HardhatArtifacts) Artifact(name string) (*Artifact, error) {
	path := filepath.Join(h.Root, "artifacts", "contracts", name+".sol", name+".json")

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (looked in %s)", ErrArtifactNotFound, name, path)
		}

		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	var art Artifact
	if err = json.Unmarshal(b, &art); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	if len(art.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact %s has no bytecode, is the contract abstract?", name)
	}
	if art.ContractName == "" {
		art.ContractName = name
	}

	return &art, nil
}

// StaticArtifacts is an in-memory ArtifactSource keyed by contract name.
type StaticArtifacts map[string]*Artifact

var _ ArtifactSource = StaticArtifacts{}

// Artifact implements ArtifactSource.
func (s StaticArtifacts) Artifact(name string) (*Artifact, error) {
	art, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}

	return art, nil
}

// Deploy sends the creation transaction of art with the given constructor params. The returned
// address is the predicted contract address; the caller must confirm the transaction.
func Deploy(
	opts *bind.TransactOpts, backend bind.ContractBackend, art *Artifact, params ...any,
) (common.Address, *types.Transaction, error) {
	if art == nil {
		return common.Address{}, nil, errors.New("nil artifact")
	}

	addr, tx, _, err := bind.DeployContract(opts, art.ABI, art.Bytecode, backend, params...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to deploy %s: %w", art.ContractName, err)
	}

	return addr, tx, nil
}
