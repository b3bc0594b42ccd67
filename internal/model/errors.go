package model

import "fmt"

// ServiceError means a remote service is unreachable or reported a terminal
// error. It carries a remediation message surfaced to the caller. Never
// retried automatically.
type ServiceError struct {
	Service string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ConfigurationError means the caller supplied an invalid filter criteria
// value. Fatal, surfaced immediately, never retried.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s value invalid: %q", e.Field, e.Value)
}
