package operations

import (
	"context"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// Bundle carries what every operation handler needs: a logger, the context and the reporter.
// Use NewBundle to create one.
type Bundle struct {
	Logger     logger.Logger
	GetContext func() context.Context

	reporter Reporter
	// reportHashCache memoizes report hashes, keyed by report id.
	reportHashCache *sync.Map
}

// NewBundle creates a Bundle.
func NewBundle(getContext func() context.Context, lggr logger.Logger, reporter Reporter) Bundle {
	return Bundle{
		Logger:          lggr,
		GetContext:      getContext,
		reporter:        reporter,
		reportHashCache: &sync.Map{},
	}
}

// Reporter returns the reporter runs are recorded in.
func (b Bundle) Reporter() Reporter { return b.reporter }

// OperationHandler is the function signature of an operation handler.
type OperationHandler[IN, OUT, DEP any] func(b Bundle, deps DEP, input IN) (output OUT, err error)

// Definition identifies an operation or a sequence. Two runs are the same when their
// definitions and inputs are equal.
type Definition struct {
	ID          string          `json:"id"`
	Version     *semver.Version `json:"version"`
	Description string          `json:"description"`
}

// Operation is a single versioned deployment step. Use NewOperation to create one.
type Operation[IN, OUT, DEP any] struct {
	def     Definition
	handler OperationHandler[IN, OUT, DEP]
}

// NewOperation creates an operation. The handler should perform at most one side effect.
func NewOperation[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler OperationHandler[IN, OUT, DEP],
) *Operation[IN, OUT, DEP] {
	return &Operation[IN, OUT, DEP]{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		handler: handler,
	}
}

// ID returns the operation ID.
func (o *Operation[IN, OUT, DEP]) ID() string { return o.def.ID }

// Version returns the operation version.
func (o *Operation[IN, OUT, DEP]) Version() string { return o.def.Version.String() }

// Description returns the operation description.
func (o *Operation[IN, OUT, DEP]) Description() string { return o.def.Description }

// Def returns the operation definition.
func (o *Operation[IN, OUT, DEP]) Def() Definition { return o.def }

func (o *Operation[IN, OUT, DEP]) execute(b Bundle, deps DEP, input IN) (OUT, error) {
	b.Logger.Infow("Executing operation",
		"id", o.def.ID, "version", o.def.Version, "description", o.def.Description)

	return o.handler(b, deps, input)
}

// SequenceHandler is the function signature of a sequence handler. It usually calls
// ExecuteOperation for each of its steps with the bundle it receives.
type SequenceHandler[IN, OUT, DEP any] func(b Bundle, deps DEP, input IN) (output OUT, err error)

// Sequence groups operations into one reported unit. Use NewSequence to create one.
type Sequence[IN, OUT, DEP any] struct {
	def     Definition
	handler SequenceHandler[IN, OUT, DEP]
}

// NewSequence creates a sequence.
func NewSequence[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler SequenceHandler[IN, OUT, DEP],
) *Sequence[IN, OUT, DEP] {
	return &Sequence[IN, OUT, DEP]{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		handler: handler,
	}
}

// ID returns the sequence ID.
func (s *Sequence[IN, OUT, DEP]) ID() string { return s.def.ID }

// Def returns the sequence definition.
func (s *Sequence[IN, OUT, DEP]) Def() Definition { return s.def }

// EmptyInput is a placeholder for operations that do not require input.
type EmptyInput struct{}
