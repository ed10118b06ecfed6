package workspace

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned by New when a required endpoint is missing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("workspace: %s is not defined", e.Field)
}

// AuthenticationError is returned when login does not yield a token.
type AuthenticationError struct {
	StatusCode int
	Reason     string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("workspace login failed (%d): %s", e.StatusCode, e.Reason)
	}
	return "workspace login failed: " + e.Reason
}

// StatusError reports a non-2xx response seen by a validated step.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Errors []ErrorItem
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// MissingFieldError is returned when a response lacks a required data field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("response is missing %s", e.Field)
}

// StepError names the SetupNewUser step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("setup step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
