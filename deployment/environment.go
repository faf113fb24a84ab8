package deployment

import (
	"context"
	"errors"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/operations"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// Environment is everything a deployment needs: the chain, where compiled contracts come from,
// where deployed addresses are recorded and how operations are reported.
type Environment struct {
	Name             string
	Logger           logger.Logger
	GetContext       func() context.Context
	Chain            evm.Chain
	Artifacts        contracts.ArtifactSource
	DataStore        datastore.MutableAddressRefStore
	OperationsBundle operations.Bundle
}

// NewEnvironment creates an Environment. Operations are reported to reporter.
func NewEnvironment(
	name string,
	getContext func() context.Context,
	lggr logger.Logger,
	chain evm.Chain,
	artifacts contracts.ArtifactSource,
	ds datastore.MutableAddressRefStore,
	reporter operations.Reporter,
) *Environment {
	return &Environment{
		Name:             name,
		Logger:           lggr,
		GetContext:       getContext,
		Chain:            chain,
		Artifacts:        artifacts,
		DataStore:        ds,
		OperationsBundle: operations.NewBundle(getContext, lggr, reporter),
	}
}

// Validate checks that the environment can deploy.
func (e *Environment) Validate() error {
	var errs []error
	if e.Chain.Client == nil {
		errs = append(errs, errors.New("chain client is required"))
	}
	if e.Chain.DeployerKey == nil {
		errs = append(errs, errors.New("deployer key is required"))
	}
	if e.Chain.Confirm == nil {
		errs = append(errs, errors.New("confirm function is required"))
	}
	if e.Artifacts == nil {
		errs = append(errs, errors.New("artifact source is required"))
	}
	if e.DataStore == nil {
		errs = append(errs, errors.New("datastore is required"))
	}

	return errors.Join(errs...)
}

// Deps returns the dependencies handed to the deployment operations.
func (e *Environment) Deps() Deps {
	return Deps{
		Chain:       e.Chain,
		Artifacts:   e.Artifacts,
		AddressRefs: e.DataStore,
	}
}
