package stack

import "fmt"

// ValidationError reports a malformed or conflicting parameter. It is raised
// before any resource is registered with the engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReferenceNotFoundError reports an external entity (hosted zone, key pair,
// AMI) that the descriptor points at but that does not exist.
type ReferenceNotFoundError struct {
	Kind  string
	Name  string
	Cause error
}

func (e *ReferenceNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %q not found: %v", e.Kind, e.Name, e.Cause)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *ReferenceNotFoundError) Unwrap() error {
	return e.Cause
}

// ExternalProvisioningError wraps a failure returned by the provisioning
// engine while registering a resource. The cause is passed through untouched.
type ExternalProvisioningError struct {
	Resource string
	Cause    error
}

func (e *ExternalProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Resource, e.Cause)
}

func (e *ExternalProvisioningError) Unwrap() error {
	return e.Cause
}

func provisionErr(resource string, err error) error {
	return &ExternalProvisioningError{Resource: resource, Cause: err}
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
