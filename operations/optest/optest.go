// Package optest provides utilities for operations testing.
package optest

import (
	"testing"

	"github.com/encrypted-lottery/lottery-deployments/operations"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// NewBundle creates an operations bundle backed by a test logger and a memory reporter.
func NewBundle(t *testing.T) operations.Bundle {
	t.Helper()

	return operations.NewBundle(t.Context, logger.Test(t), operations.NewMemoryReporter())
}
