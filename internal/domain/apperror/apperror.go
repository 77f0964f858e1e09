// Package apperror holds the error taxonomy shared by the payroll and
// settlement engines. Every type matches one sentinel through errors.Is and
// carries the identifiers of what it implicates for errors.As callers.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig              = errors.New("invalid configuration")
	ErrDataIncomplete      = errors.New("incomplete input data")
	ErrStateTransition     = errors.New("state transition not allowed")
	ErrNegativeBalance     = errors.New("negative balance requires acknowledgement")
	ErrConcurrencyConflict = errors.New("operation already in progress")
)

// ConfigError is fatal for the operation that loaded the configuration.
type ConfigError struct {
	Source string
	Field  string
	Reason string
}

func NewConfigError(source, field, reason string) *ConfigError {
	return &ConfigError{Source: source, Field: field, Reason: reason}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("config %s: %s: %s", e.Source, e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DataIncompleteError blocks a single staff member's entry.
type DataIncompleteError struct {
	StaffID string
	Source  string
	Err     error
}

func NewDataIncompleteError(staffID, source string, err error) *DataIncompleteError {
	return &DataIncompleteError{StaffID: staffID, Source: source, Err: err}
}

func (e *DataIncompleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("staff %s: missing %s data: %v", e.StaffID, e.Source, e.Err)
	}
	return fmt.Sprintf("staff %s: missing %s data", e.StaffID, e.Source)
}

func (e *DataIncompleteError) Is(target error) bool { return target == ErrDataIncomplete }

func (e *DataIncompleteError) Unwrap() error { return e.Err }

// StateTransitionError is returned before any mutation happens.
type StateTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *StateTransitionError) Is(target error) bool { return target == ErrStateTransition }

// NegativeBalanceWarning lists the staff whose results went below zero.
type NegativeBalanceWarning struct {
	Entity   string
	ID       string
	StaffIDs []string
}

func (e *NegativeBalanceWarning) Error() string {
	return fmt.Sprintf("%s %s: negative balance for staff [%s] must be acknowledged",
		e.Entity, e.ID, strings.Join(e.StaffIDs, ", "))
}

func (e *NegativeBalanceWarning) Is(target error) bool { return target == ErrNegativeBalance }

// ConcurrencyConflictError means another request holds the resource lock.
type ConcurrencyConflictError struct {
	Resource string
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s is locked by another operation, retry later", e.Resource)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// StaffIDs collects the staff identifiers carried by err, if any.
func StaffIDs(err error) []string {
	var data *DataIncompleteError
	if errors.As(err, &data) {
		return []string{data.StaffID}
	}
	var negative *NegativeBalanceWarning
	if errors.As(err, &negative) {
		return negative.StaffIDs
	}
	return nil
}
