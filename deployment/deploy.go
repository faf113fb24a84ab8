// Package deployment deploys the confidential tokens and the TokenLottery contract and records
// their addresses.
package deployment

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider"
	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/operations"
)

// DeployTokensAndLotteryID identifies the deployment sequence. Reports and logs refer to it.
const DeployTokensAndLotteryID = "deploy_tokens_lottery"

// ContractVersion is the version every deployed contract is recorded with.
var ContractVersion = semver.MustParse("1.0.0")

// deployOptions retry transient RPC failures before broadcast and always check the chain instead
// of trusting an earlier report. Reverts and failures after broadcast are not retried.
func deployOptions() []operations.ExecuteOption[ContractInput, Deps] {
	return []operations.ExecuteOption[ContractInput, Deps]{
		operations.WithRetryConfig[ContractInput, Deps](operations.RetryConfig[ContractInput, Deps]{
			Enabled: true,
			Policy:  operations.RetryPolicy{MaxAttempts: 3, Delay: 200 * time.Millisecond},
		}),
		operations.WithForceExecute[ContractInput, Deps](),
	}
}

// ErrEmptyTokenList is returned before any transaction when there are no tokens to deploy.
var ErrEmptyTokenList = errors.New("token list is empty")

// ContractStatus tells whether a contract was deployed by the run or found already deployed.
type ContractStatus string

const (
	StatusDeployed ContractStatus = "deployed"
	StatusReused   ContractStatus = "reused"
)

// Deps are the dependencies of the deployment operations.
type Deps struct {
	Chain       evm.Chain
	Artifacts   contracts.ArtifactSource
	AddressRefs datastore.MutableAddressRefStore
}

// ContractInput selects the contract to deploy. Tokens are passed to the constructor when it
// takes arguments.
type ContractInput struct {
	ContractName string           `json:"contractName"`
	Tokens       []common.Address `json:"tokens,omitempty"`
	Qualifier    string           `json:"qualifier,omitempty"`
	Labels       []string         `json:"labels,omitempty"`
}

// ContractDeployment is the outcome for one contract.
type ContractDeployment struct {
	ContractName string         `json:"contractName"`
	Address      common.Address `json:"address"`
	Status       ContractStatus `json:"status"`
	TxHash       string         `json:"txHash,omitempty"`
}

// DeployContract deploys one contract unless the datastore already records it with code on
// chain.
var DeployContract = operations.NewOperation(
	"deploy-contract",
	ContractVersion,
	"Deploys a contract unless it is already recorded in the datastore",
	deployContract,
)

func deployContract(b operations.Bundle, deps Deps, in ContractInput) (ContractDeployment, error) {
	ctx := b.GetContext()
	key := datastore.NewAddressRefKey(
		deps.Chain.Selector, datastore.ContractType(in.ContractName), ContractVersion, in.Qualifier,
	)

	ref, err := deps.AddressRefs.Get(key)
	switch {
	case err == nil:
		code, cerr := deps.Chain.Client.CodeAt(ctx, ref.EVMAddress(), nil)
		if cerr != nil {
			return ContractDeployment{}, fmt.Errorf("failed to get code of %s at %s: %w", in.ContractName, ref.Address, cerr)
		}
		if len(code) > 0 {
			return ContractDeployment{
				ContractName: in.ContractName,
				Address:      ref.EVMAddress(),
				Status:       StatusReused,
			}, nil
		}
		b.Logger.Warnw("Recorded contract has no code, redeploying",
			"contract", in.ContractName, "address", ref.Address, "key", key.String())
	case errors.Is(err, datastore.ErrAddressRefNotFound):
	default:
		return ContractDeployment{}, operations.NewUnrecoverableError(err)
	}

	art, err := deps.Artifacts.Artifact(in.ContractName)
	if err != nil {
		return ContractDeployment{}, operations.NewUnrecoverableError(err)
	}

	var params []any
	if len(art.ABI.Constructor.Inputs) > 0 {
		params = append(params, in.Tokens)
	}

	opts := *deps.Chain.DeployerKey
	opts.Context = ctx

	addr, tx, err := contracts.Deploy(&opts, deps.Chain.Client, art, params...)
	if err != nil {
		if reason, rerr := provider.RevertReason(err); rerr == nil {
			return ContractDeployment{}, operations.NewUnrecoverableError(
				fmt.Errorf("%s constructor reverted: %s: %w", in.ContractName, reason, err),
			)
		}

		return ContractDeployment{}, err
	}

	// The transaction is broadcast, so a retry could deploy a second copy.
	receipt, err := deps.Chain.Confirm(tx)
	if err != nil {
		return ContractDeployment{}, operations.NewUnrecoverableError(
			fmt.Errorf("failed to confirm deployment of %s in tx %s: %w", in.ContractName, tx.Hash().Hex(), err),
		)
	}
	if receipt != nil && receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}

	if err = deps.AddressRefs.Upsert(datastore.AddressRef{
		Address:       addr.Hex(),
		ChainSelector: deps.Chain.Selector,
		Type:          datastore.ContractType(in.ContractName),
		Version:       ContractVersion,
		Qualifier:     in.Qualifier,
		Labels:        datastore.NewLabelSet(in.Labels...),
	}); err != nil {
		return ContractDeployment{}, operations.NewUnrecoverableError(
			fmt.Errorf("%s deployed at %s but could not be recorded: %w", in.ContractName, addr.Hex(), err),
		)
	}

	return ContractDeployment{
		ContractName: in.ContractName,
		Address:      addr,
		Status:       StatusDeployed,
		TxHash:       tx.Hash().Hex(),
	}, nil
}

// DeployTokensAndLotteryInput lists the token contracts to deploy, in order. The lottery is
// constructed with their addresses in the same order.
type DeployTokensAndLotteryInput struct {
	Tokens    []string `json:"tokens"`
	Qualifier string   `json:"qualifier,omitempty"`
}

// DefaultDeployInput deploys the five confidential tokens.
func DefaultDeployInput() DeployTokensAndLotteryInput {
	return DeployTokensAndLotteryInput{Tokens: append([]string(nil), contracts.TokenNames...)}
}

// DeployTokensAndLotteryOutput holds the outcome of every contract of the sequence.
type DeployTokensAndLotteryOutput struct {
	Tokens  []ContractDeployment `json:"tokens"`
	Lottery ContractDeployment   `json:"lottery"`
}

// TokenAddresses returns the token addresses in deployment order.
func (o DeployTokensAndLotteryOutput) TokenAddresses() []common.Address {
	out := make([]common.Address, 0, len(o.Tokens))
	for _, t := range o.Tokens {
		out = append(out, t.Address)
	}

	return out
}

// DeployTokensAndLottery deploys or reuses each token, then the lottery over the token addresses.
var DeployTokensAndLottery = operations.NewSequence(
	DeployTokensAndLotteryID,
	ContractVersion,
	"Deploys the confidential tokens and the TokenLottery contract",
	func(b operations.Bundle, deps Deps, in DeployTokensAndLotteryInput) (DeployTokensAndLotteryOutput, error) {
		if len(in.Tokens) == 0 {
			return DeployTokensAndLotteryOutput{}, ErrEmptyTokenList
		}

		out := DeployTokensAndLotteryOutput{Tokens: make([]ContractDeployment, 0, len(in.Tokens))}
		for _, name := range in.Tokens {
			report, err := operations.ExecuteOperation(b, DeployContract, deps, ContractInput{
				ContractName: name,
				Qualifier:    in.Qualifier,
				Labels:       []string{"token"},
			}, deployOptions()...)
			if err != nil {
				return DeployTokensAndLotteryOutput{}, fmt.Errorf("failed to deploy %s: %w", name, err)
			}
			logDeployment(b, report.Output)
			out.Tokens = append(out.Tokens, report.Output)
		}

		report, err := operations.ExecuteOperation(b, DeployContract, deps, ContractInput{
			ContractName: contracts.TokenLotteryName,
			Tokens:       out.TokenAddresses(),
			Qualifier:    in.Qualifier,
			Labels:       []string{"lottery"},
		}, deployOptions()...)
		if err != nil {
			return DeployTokensAndLotteryOutput{}, fmt.Errorf("failed to deploy %s: %w", contracts.TokenLotteryName, err)
		}
		logDeployment(b, report.Output)
		out.Lottery = report.Output

		return out, nil
	},
)

func logDeployment(b operations.Bundle, d ContractDeployment) {
	b.Logger.Infof("%s contract (%s): %s", d.ContractName, d.Status, d.Address.Hex())
}

// Deploy runs DeployTokensAndLottery in the environment. Every run checks the datastore and the
// chain again, so the reported statuses describe the chain as it is now.
func Deploy(e *Environment, in DeployTokensAndLotteryInput) (DeployTokensAndLotteryOutput, error) {
	if err := e.Validate(); err != nil {
		return DeployTokensAndLotteryOutput{}, fmt.Errorf("invalid environment %q: %w", e.Name, err)
	}

	report, err := operations.ExecuteSequence(e.OperationsBundle, DeployTokensAndLottery, e.Deps(), in,
		operations.WithForceSequence())
	if err != nil {
		return DeployTokensAndLotteryOutput{}, err
	}

	return report.Output, nil
}
