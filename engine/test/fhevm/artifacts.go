package fhevm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
)

// tokenDef describes one of the confidential tokens the mock can deploy.
type tokenDef struct {
	contractName string
	name         string
	symbol       string
	decimals     uint8
}

var tokenDefs = []tokenDef{
	{contractName: "ERC7984USDT", name: "Confidential Tether USD", symbol: "cUSDT", decimals: 6},
	{contractName: "ERC7984USDC", name: "Confidential USD Coin", symbol: "cUSDC", decimals: 6},
	{contractName: "ERC7984DAI", name: "Confidential Dai", symbol: "cDAI", decimals: 6},
	{contractName: "ERC7984WBTC", name: "Confidential Wrapped BTC", symbol: "cWBTC", decimals: 6},
	{contractName: "ERC7984LINK", name: "Confidential ChainLink", symbol: "cLINK", decimals: 6},
}

// codeMarker is the deployed code of a mock contract. Creation data is the marker followed by the
// ABI encoded constructor arguments.
func codeMarker(contractName string) []byte {
	return crypto.Keccak256([]byte("fhevm-mock:" + contractName))
}

type factory func(args []any) (contract, error)

type registration struct {
	abi     *abi.ABI
	factory factory
}

// registry maps a code marker to the contract it creates.
var registry = func() map[common.Hash]registration {
	r := make(map[common.Hash]registration, len(tokenDefs)+1)
	for _, def := range tokenDefs {
		r[common.BytesToHash(codeMarker(def.contractName))] = registration{
			abi: contracts.TokenABI,
			factory: func([]any) (contract, error) {
				return newToken(def), nil
			},
		}
	}
	r[common.BytesToHash(codeMarker(contracts.TokenLotteryName))] = registration{
		abi:     contracts.LotteryABI,
		factory: newLotteryFromArgs,
	}

	return r
}()

// construct decodes creation data into a fresh contract instance.
func construct(data []byte) (contract, []byte, error) {
	if len(data) < common.HashLength {
		return nil, nil, fmt.Errorf("%w: creation data too short", errUnknownCode)
	}

	marker := data[:common.HashLength]
	reg, ok := registry[common.BytesToHash(marker)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %x", errUnknownCode, marker)
	}

	args, err := reg.abi.Constructor.Inputs.Unpack(data[common.HashLength:])
	if err != nil {
		return nil, nil, revert("invalid constructor arguments: %v", err)
	}

	c, err := reg.factory(args)
	if err != nil {
		return nil, nil, err
	}

	return c, bytes.Clone(marker), nil
}

// Artifacts returns the artifact source for the mock contracts. Deploying them through
// contracts.Deploy against a Backend yields working token and lottery contracts.
func Artifacts() contracts.StaticArtifacts {
	out := make(contracts.StaticArtifacts, len(tokenDefs)+1)
	for _, def := range tokenDefs {
		out[def.contractName] = &contracts.Artifact{
			ContractName: def.contractName,
			SourceName:   "contracts/" + def.contractName + ".sol",
			ABI:          *contracts.TokenABI,
			Bytecode:     codeMarker(def.contractName),
		}
	}
	out[contracts.TokenLotteryName] = &contracts.Artifact{
		ContractName: contracts.TokenLotteryName,
		SourceName:   "contracts/" + contracts.TokenLotteryName + ".sol",
		ABI:          *contracts.LotteryABI,
		Bytecode:     codeMarker(contracts.TokenLotteryName),
	}

	return out
}
