/*
Package operations runs deployment steps as versioned, reportable units.

An Operation performs at most one side effect, such as deploying a contract. ExecuteOperation
records a Report of every run and, when a successful report with the same definition and input
already exists, returns it instead of running again. A Sequence groups operations and is reported
the same way, with the reports of its operations attached.

# Basic Usage

	op := operations.NewOperation("deploy-token", semver.MustParse("1.0.0"), "Deploys a token",
		func(b operations.Bundle, deps Deps, in DeployTokenInput) (DeployTokenOutput, error) {
			...
		},
	)

	b := operations.NewBundle(ctx, lggr, operations.NewMemoryReporter())
	report, err := operations.ExecuteOperation(b, op, deps, input, operations.WithRetry[DeployTokenInput, Deps]())
*/
package operations
