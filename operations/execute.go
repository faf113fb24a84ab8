package operations

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

var ErrNotSerializable = errors.New("data cannot be safely written to disk without data lost, " +
	"avoid type that can't be serialized")

// ExecuteConfig is the configuration for the ExecuteOperation function.
type ExecuteConfig[IN, DEP any] struct {
	retryConfig RetryConfig[IN, DEP]
	force       bool
}

// ExecuteOption configures ExecuteOperation.
type ExecuteOption[IN, DEP any] func(*ExecuteConfig[IN, DEP])

// RetryConfig controls retries of a failing operation.
type RetryConfig[IN, DEP any] struct {
	Enabled bool
	Policy  RetryPolicy
	// InputHook returns the input of the next attempt, e.g. with a raised gas limit.
	InputHook func(attempt uint, err error, input IN, deps DEP) IN
}

// RetryPolicy defines the arguments to control the retry behavior.
type RetryPolicy struct {
	MaxAttempts uint
	// Delay is the initial backoff delay. Zero uses the retry-go default.
	Delay time.Duration
}

func newDisabledRetryConfig[IN, DEP any]() RetryConfig[IN, DEP] {
	return RetryConfig[IN, DEP]{
		Policy: RetryPolicy{MaxAttempts: 10},
	}
}

func (p RetryPolicy) options() []retry.Option {
	opts := []retry.Option{retry.Attempts(p.MaxAttempts), retry.LastErrorOnly(true)}
	if p.Delay > 0 {
		opts = append(opts, retry.Delay(p.Delay))
	}

	return opts
}

// WithRetry enables the default retry policy.
func WithRetry[IN, DEP any]() ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
	}
}

// WithRetryInput enables the default retry policy and rewrites the input before each retry.
func WithRetryInput[IN, DEP any](inputHookFunc func(uint, error, IN, DEP) IN) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
		c.retryConfig.InputHook = inputHookFunc
	}
}

// WithForceExecute runs the operation even when a previous successful report with the same input
// exists. Use it for operations that check the chain themselves and must report its current state.
func WithForceExecute[IN, DEP any]() ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.force = true
	}
}

// SequenceOption configures ExecuteSequence.
type SequenceOption func(*sequenceConfig)

type sequenceConfig struct {
	force bool
}

// WithForceSequence runs the sequence even when a previous successful report with the same input
// exists. Operations inside the sequence still follow their own ExecuteOption values.
func WithForceSequence() SequenceOption {
	return func(c *sequenceConfig) {
		c.force = true
	}
}

// WithRetryConfig replaces the retry configuration.
func WithRetryConfig[IN, DEP any](config RetryConfig[IN, DEP]) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig = config
	}
}

// ExecuteOperation runs an operation and records its report. When a successful report with the
// same definition and input exists, its result is returned and the operation is not run again.
// Failed runs are always retried from scratch.
//
// Retries are opt-in through the ExecuteOption values. Return NewUnrecoverableError from the
// handler to stop retrying early.
//
// Input and output must survive a JSON round trip, see IsSerializable.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
	opts ...ExecuteOption[IN, DEP],
) (Report[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s input: %w", operation.def.ID, ErrNotSerializable)
	}

	cfg := &ExecuteConfig[IN, DEP]{retryConfig: newDisabledRetryConfig[IN, DEP]()}
	for _, opt := range opts {
		opt(cfg)
	}

	if !cfg.force {
		if previous, found := loadPreviousSuccessfulReport[IN, OUT](b, operation.def, input); found {
			b.Logger.Infow("Operation already executed. Returning previous result",
				"id", operation.def.ID, "version", operation.def.Version, "report", previous.ID)

			return previous, nil
		}
	}

	var (
		output OUT
		err    error
	)
	if cfg.retryConfig.Enabled {
		attemptInput := input
		retryOpts := append(cfg.retryConfig.Policy.options(),
			retry.Context(b.GetContext()),
			retry.OnRetry(func(attempt uint, rerr error) {
				b.Logger.Infow("Operation failed. Retrying...",
					"operation", operation.def.ID, "attempt", attempt, "error", rerr)

				if cfg.retryConfig.InputHook != nil {
					attemptInput = cfg.retryConfig.InputHook(attempt, rerr, attemptInput, deps)
				}
			}),
		)

		output, err = retry.DoWithData(func() (OUT, error) {
			return operation.execute(b, deps, attemptInput)
		}, retryOpts...)
	} else {
		output, err = operation.execute(b, deps, input)
	}

	if err == nil && !IsSerializable(b.Logger, output) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s output: %w", operation.def.ID, ErrNotSerializable)
	}

	report := NewReport(operation.def, input, output, err)
	report.Forced = cfg.force
	if aerr := b.reporter.AddReport(genericReport(report)); aerr != nil {
		return Report[IN, OUT]{}, aerr
	}
	if err != nil {
		return report, err
	}

	return report, nil
}

// ExecuteSequence runs a sequence and records its report, with the ids of the operation reports
// produced while it ran. A previous successful run with the same input is returned instead.
func ExecuteSequence[IN, OUT, DEP any](
	b Bundle, sequence *Sequence[IN, OUT, DEP], deps DEP, input IN, opts ...SequenceOption,
) (SequenceReport[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return SequenceReport[IN, OUT]{}, fmt.Errorf("sequence %s input: %w", sequence.def.ID, ErrNotSerializable)
	}

	cfg := &sequenceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if !cfg.force {
		if previous, found := loadPreviousSuccessfulReport[IN, OUT](b, sequence.def, input); found {
			executionReports, err := b.reporter.GetExecutionReports(previous.ID)
			if err != nil {
				return SequenceReport[IN, OUT]{}, err
			}
			b.Logger.Infow("Sequence already executed. Returning previous result",
				"id", sequence.def.ID, "version", sequence.def.Version, "report", previous.ID)

			return SequenceReport[IN, OUT]{Report: previous, ExecutionReports: executionReports}, nil
		}
	}

	b.Logger.Infow("Executing sequence",
		"id", sequence.def.ID, "version", sequence.def.Version, "description", sequence.def.Description)

	recent := NewRecentReporter(b.reporter)
	inner := Bundle{
		Logger:          b.Logger,
		GetContext:      b.GetContext,
		reporter:        recent,
		reportHashCache: b.reportHashCache,
	}

	output, err := sequence.handler(inner, deps, input)
	if errors.Is(err, ErrNotSerializable) {
		return SequenceReport[IN, OUT]{}, err
	}
	if err == nil && !IsSerializable(b.Logger, output) {
		return SequenceReport[IN, OUT]{}, fmt.Errorf("sequence %s output: %w", sequence.def.ID, ErrNotSerializable)
	}

	children := recent.RecentReports()
	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
	}

	report := NewReport(sequence.def, input, output, err, childIDs...)
	report.Forced = cfg.force
	if aerr := b.reporter.AddReport(genericReport(report)); aerr != nil {
		return SequenceReport[IN, OUT]{}, aerr
	}

	executionReports, rerr := b.reporter.GetExecutionReports(report.ID)
	if rerr != nil {
		return SequenceReport[IN, OUT]{}, rerr
	}

	seqReport := SequenceReport[IN, OUT]{Report: report, ExecutionReports: executionReports}
	if err != nil {
		return seqReport, err
	}

	return seqReport, nil
}

// NewUnrecoverableError marks err so that a retrying operation fails immediately.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}

// IsSerializable reports whether v can be written as JSON and read back.
func IsSerializable(lggr interface{ Errorw(string, ...any) }, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		lggr.Errorw("Value is not JSON serializable", "type", fmt.Sprintf("%T", v), "error", err)

		return false
	}

	var out any
	if err = json.Unmarshal(data, &out); err != nil {
		lggr.Errorw("Value cannot be read back from JSON", "type", fmt.Sprintf("%T", v), "error", err)

		return false
	}

	return true
}

// hashOf returns the hex sha256 of the canonical JSON encoding of a definition and an input.
// Structs and the maps decoded from them hash the same since object keys end up sorted.
func hashOf(def Definition, input any) (string, error) {
	data, err := json.Marshal(struct {
		Def   Definition `json:"def"`
		Input any        `json:"input"`
	}{def, input})
	if err != nil {
		return "", err
	}

	var canonical any
	if err = json.Unmarshal(data, &canonical); err != nil {
		return "", err
	}
	if data, err = json.Marshal(canonical); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

func (b Bundle) reportHash(r Report[any, any]) (string, error) {
	if b.reportHashCache != nil {
		if cached, ok := b.reportHashCache.Load(r.ID); ok {
			return cached.(string), nil
		}
	}

	h, err := hashOf(r.Def, r.Input)
	if err != nil {
		return "", err
	}
	if b.reportHashCache != nil {
		b.reportHashCache.Store(r.ID, h)
	}

	return h, nil
}

func loadPreviousSuccessfulReport[IN, OUT any](b Bundle, def Definition, input IN) (Report[IN, OUT], bool) {
	reports, err := b.reporter.GetReports()
	if err != nil {
		b.Logger.Errorw("Failed to get reports", "error", err)

		return Report[IN, OUT]{}, false
	}

	current, err := hashOf(def, input)
	if err != nil {
		b.Logger.Errorw("Failed to hash operation input", "error", err)

		return Report[IN, OUT]{}, false
	}

	for _, report := range reports {
		if report.Err != nil {
			continue
		}
		h, herr := b.reportHash(report)
		if herr != nil || h != current {
			continue
		}

		typed, ok := typeReport[IN, OUT](report)
		if !ok {
			b.Logger.Debugw("Previous execution found but its report could not be typed",
				"id", def.ID, "report", report.ID)

			continue
		}

		return typed, true
	}

	return Report[IN, OUT]{}, false
}
