// Package errs defines the error taxonomy shared by the deployment engine.
// Handlers translate these types to HTTP status codes; the engine decides
// retry and state-transition behavior by matching on them with errors.As.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// AuthenticationError means the caller's credential was rejected or lacks
// the required scope. Fatal and user-correctable, never retried.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func Authentication(format string, args ...any) error {
	return &AuthenticationError{Reason: fmt.Sprintf(format, args...)}
}

func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// NotFoundError covers missing projects, domains, deployments, repositories
// and branches.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func NotFound(format string, args ...any) error {
	return &NotFoundError{Resource: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ValidationError marks malformed caller input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// BuildFailedError carries the provider's terminal status and the last log
// line observed before the build ended, for diagnosis.
type BuildFailedError struct {
	Status      string
	LastLogLine string
}

func (e *BuildFailedError) Error() string {
	if e.LastLogLine == "" {
		return fmt.Sprintf("build finished with status %s", e.Status)
	}
	return fmt.Sprintf("build finished with status %s: %s", e.Status, e.LastLogLine)
}

func IsBuildFailed(err error) bool {
	var target *BuildFailedError
	return errors.As(err, &target)
}

// BuildTimeoutError means the build poll loop exhausted its wall-clock budget.
type BuildTimeoutError struct {
	Elapsed time.Duration
}

func (e *BuildTimeoutError) Error() string {
	return fmt.Sprintf("build did not finish within %s", e.Elapsed)
}

// TransientError wraps a provider condition that is expected to clear, such
// as a log stream that does not exist yet. Retried a bounded number of times
// before escalating.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

// ProvisioningError wraps a compute/routing/DNS mutation that failed after
// the workflow started changing shared infrastructure. Always fatal.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning step %s failed: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

func Provisioning(op string, err error) error {
	return &ProvisioningError{Op: op, Err: err}
}
