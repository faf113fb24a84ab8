package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report records one run of an operation or a sequence.
type Report[IN, OUT any] struct {
	ID        string       `json:"id"`
	Def       Definition   `json:"definition"`
	Output    OUT          `json:"output"`
	Input     IN           `json:"input"`
	Timestamp *time.Time   `json:"timestamp"`
	Err       *ReportError `json:"error"`
	// ChildOperationReports holds the ids of the reports produced inside a sequence.
	ChildOperationReports []string `json:"childOperationReports"`
	// Forced is set when the run ignored a previous successful report with the same input.
	Forced bool `json:"forced,omitempty"`
}

// ToGenericReport converts the Report to a Report[any, any].
func (r Report[IN, OUT]) ToGenericReport() Report[any, any] {
	return genericReport(r)
}

// SequenceReport is the report of a sequence together with the reports of everything it ran,
// the sequence itself last.
type SequenceReport[IN, OUT any] struct {
	Report[IN, OUT]

	ExecutionReports []Report[any, any]
}

// NewReport creates a report with a fresh id.
func NewReport[IN, OUT any](
	def Definition, input IN, output OUT, err error, childReportsID ...string,
) Report[IN, OUT] {
	now := time.Now()
	r := Report[IN, OUT]{
		ID:                    uuid.New().String(),
		Def:                   def,
		Output:                output,
		Input:                 input,
		Timestamp:             &now,
		ChildOperationReports: childReportsID,
	}
	if err != nil {
		r.Err = &ReportError{Message: err.Error()}
	}

	return r
}

// ReportError is the JSON form of a run error.
type ReportError struct {
	Message string `json:"message"`
}

// Error implements the error interface.
func (o ReportError) Error() string {
	return o.Message
}

var ErrReportNotFound = errors.New("report not found")

// Reporter stores reports.
type Reporter interface {
	GetReport(id string) (Report[any, any], error)
	GetReports() ([]Report[any, any], error)
	AddReport(report Report[any, any]) error
	GetExecutionReports(reportID string) ([]Report[any, any], error)
}

var (
	_ Reporter = (*MemoryReporter)(nil)
	_ Reporter = (*FileReporter)(nil)
	_ Reporter = (*RecentReporter)(nil)
)

// MemoryReporter stores reports in memory. It is safe for concurrent use.
type MemoryReporter struct {
	reports []Report[any, any]
	mu      sync.RWMutex
}

type MemoryReporterOption func(*MemoryReporter)

// WithReports seeds the reporter.
func WithReports(reports []Report[any, any]) MemoryReporterOption {
	return func(mr *MemoryReporter) {
		mr.reports = reports
	}
}

// NewMemoryReporter creates a new MemoryReporter.
func NewMemoryReporter(options ...MemoryReporterOption) *MemoryReporter {
	reporter := &MemoryReporter{}
	for _, opt := range options {
		opt(reporter)
	}

	return reporter
}

func (e *MemoryReporter) AddReport(report Report[any, any]) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reports = append(e.reports, report)

	return nil
}

func (e *MemoryReporter) GetReports() ([]Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reports := make([]Report[any, any], len(e.reports))
	copy(reports, e.reports)

	return reports, nil
}

// GetReport returns ErrReportNotFound for an unknown id.
func (e *MemoryReporter) GetReport(id string) (Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return findReport(e.reports, id)
}

// GetExecutionReports returns the report with the given id preceded, depth first, by all of its
// child reports.
func (e *MemoryReporter) GetExecutionReports(reportID string) ([]Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return executionReports(e.reports, reportID)
}

func findReport(reports []Report[any, any], id string) (Report[any, any], error) {
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}

	return Report[any, any]{}, fmt.Errorf("report_id %s: %w", id, ErrReportNotFound)
}

func executionReports(reports []Report[any, any], reportID string) ([]Report[any, any], error) {
	var all []Report[any, any]

	var walk func(id string) error
	walk = func(id string) error {
		report, err := findReport(reports, id)
		if err != nil {
			return err
		}
		for _, childID := range report.ChildOperationReports {
			if err = walk(childID); err != nil {
				return err
			}
		}
		all = append(all, report)

		return nil
	}

	if err := walk(reportID); err != nil {
		return nil, err
	}

	return all, nil
}

// FileReporter is a MemoryReporter persisted as a JSON array, so that a deployment interrupted
// halfway reuses the steps that already succeeded.
type FileReporter struct {
	*MemoryReporter

	path string
}

// NewFileReporter loads the reports at path. A missing file yields an empty reporter.
func NewFileReporter(path string) (*FileReporter, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &FileReporter{MemoryReporter: NewMemoryReporter(), path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reports from %s: %w", path, err)
	}

	var reports []Report[any, any]
	if err = json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports from %s: %w", path, err)
	}

	return &FileReporter{MemoryReporter: NewMemoryReporter(WithReports(reports)), path: path}, nil
}

// AddReport adds the report and rewrites the file.
func (f *FileReporter) AddReport(report Report[any, any]) error {
	if err := f.MemoryReporter.AddReport(report); err != nil {
		return err
	}

	reports, err := f.GetReports()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err = os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write reports to %s: %w", f.path, err)
	}

	return nil
}

// RecentReporter wraps a Reporter and remembers the reports added through it.
type RecentReporter struct {
	Reporter

	recentReports []Report[any, any]
	mu            sync.RWMutex
}

// NewRecentReporter creates a RecentReporter on top of reporter.
func NewRecentReporter(reporter Reporter) *RecentReporter {
	return &RecentReporter{
		Reporter:      reporter,
		recentReports: []Report[any, any]{},
	}
}

func (e *RecentReporter) AddReport(report Report[any, any]) error {
	if err := e.Reporter.AddReport(report); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.recentReports = append(e.recentReports, report)

	return nil
}

// RecentReports returns the reports added since the RecentReporter was created.
func (e *RecentReporter) RecentReports() []Report[any, any] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reports := make([]Report[any, any], len(e.recentReports))
	copy(reports, e.recentReports)

	return reports
}

func genericReport[IN, OUT any](r Report[IN, OUT]) Report[any, any] {
	return Report[any, any]{
		ID:                    r.ID,
		Def:                   r.Def,
		Output:                r.Output,
		Input:                 r.Input,
		Timestamp:             r.Timestamp,
		Err:                   r.Err,
		ChildOperationReports: r.ChildOperationReports,
		Forced:                r.Forced,
	}
}

// typeReport converts a Report[any, any] back to its concrete types. Reports read from disk hold
// maps and float64s, so the values go through JSON again.
func typeReport[IN, OUT any](r Report[any, any]) (Report[IN, OUT], bool) {
	var input IN
	if !retype(r.Input, &input) {
		return Report[IN, OUT]{}, false
	}
	var output OUT
	if !retype(r.Output, &output) {
		return Report[IN, OUT]{}, false
	}

	return Report[IN, OUT]{
		ID:                    r.ID,
		Def:                   r.Def,
		Output:                output,
		Input:                 input,
		Timestamp:             r.Timestamp,
		Err:                   r.Err,
		ChildOperationReports: r.ChildOperationReports,
		Forced:                r.Forced,
	}, true
}

func retype(from, to any) bool {
	data, err := json.Marshal(from)
	if err != nil {
		return false
	}

	return json.Unmarshal(data, to) == nil
}
