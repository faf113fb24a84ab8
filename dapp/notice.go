package dapp

// Severity is the level of a Notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Severity Severity
	Text     string
	// Err is set for error notices.
	Err error
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// notifyErr sends err as an error notice and returns it.
func (o *Orchestrator) notifyErr(err error) error {
	o.notifier.Notify(Notice{Severity: SeverityError, Text: err.Error(), Err: err})

	return err
}

func (o *Orchestrator) notify(sev Severity, text string) {
	o.notifier.Notify(Notice{Severity: sev, Text: text})
}
