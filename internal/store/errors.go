package store

import (
	"errors"
	"fmt"
)

// Store errors. Use errors.Is to test for them; ExecutionError and
// ConversionError also match ErrExecution and ErrConversion.
var (
	// ErrTableNotAllowed is returned when a table identifier is not in the
	// allowlist. No connection is acquired when this is returned.
	ErrTableNotAllowed = errors.New("store: table not allowed")

	// ErrColumnNotAllowed is returned when a table restricts its columns and
	// a column identifier is not among them.
	ErrColumnNotAllowed = errors.New("store: column not allowed")

	// ErrExecution matches every *ExecutionError.
	ErrExecution = errors.New("store: execution failed")

	// ErrConversion matches every *ConversionError.
	ErrConversion = errors.New("store: conversion failed")

	// ErrEmptyTable is returned by MaxID and MinID when the aggregate is NULL.
	ErrEmptyTable = errors.New("store: table has no rows")

	// ErrInvalidStatement is returned for malformed operation input, such as
	// an insert whose column and value counts differ.
	ErrInvalidStatement = errors.New("store: invalid statement")

	// ErrUnsupportedDialect is returned by New for an unknown driver name.
	ErrUnsupportedDialect = errors.New("store: unsupported dialect")

	// ErrNullValue is the cause inside a ConversionError for a NULL cell
	// decoded into a non-optional type.
	ErrNullValue = errors.New("value is NULL")
)

// ExecutionError reports that the database rejected or failed a statement.
type ExecutionError struct {
	// Op is the store operation, e.g. "get_like".
	Op string
	// Query is the statement text as sent to the driver.
	Query string
	// Err is the driver error.
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrExecution and the driver error to errors.Is/As.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// ConversionError reports that a cell could not become the requested type.
type ConversionError struct {
	From Kind
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: cannot convert %s to %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("store: cannot convert %s to %s", e.From, e.To)
}

// Unwrap exposes ErrConversion and the underlying cause.
func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConversion}
	}
	return []error{ErrConversion, e.Err}
}
