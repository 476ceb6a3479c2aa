package apperr

import "errors"

// ConfigurationError rejects a test set before any run starts.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func NewConfiguration(msg string) *ConfigurationError {
	return &ConfigurationError{Message: msg}
}

func NewConfigurationWrap(msg string, err error) *ConfigurationError {
	return &ConfigurationError{Message: msg, Err: err}
}

// InfrastructureError is fatal to the whole invocation (image build, initial network).
type InfrastructureError struct {
	Message string
	Err     error
}

func (e *InfrastructureError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func NewInfrastructure(msg string) *InfrastructureError {
	return &InfrastructureError{Message: msg}
}

func NewInfrastructureWrap(msg string, err error) *InfrastructureError {
	return &InfrastructureError{Message: msg, Err: err}
}

type Stage string

const (
	StageStart    Stage = "start"
	StageSchedule Stage = "schedule"
	StageCall     Stage = "call"
	StageCapture  Stage = "capture"
	StageScore    Stage = "score"
)

// RunError is isolated to a single run and recorded in its result.
type RunError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *RunError) Error() string {
	msg := string(e.Stage) + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func NewRun(stage Stage, msg string) *RunError {
	return &RunError{Stage: stage, Message: msg}
}

func NewRunWrap(stage Stage, msg string, err error) *RunError {
	return &RunError{Stage: stage, Message: msg, Err: err}
}

// CleanupWarning is logged by best-effort teardown and never surfaces as a failure.
type CleanupWarning struct {
	Resource string
	Err      error
}

func (e *CleanupWarning) Error() string {
	if e.Err != nil {
		return "cleanup " + e.Resource + ": " + e.Err.Error()
	}
	return "cleanup " + e.Resource + ": nothing to remove"
}

func (e *CleanupWarning) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the test-set invocation.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var ie *InfrastructureError
	return errors.As(err, &ie)
}
