package payroll

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumns = errors.New("payroll sheet is missing required columns")
	ErrMissingField   = errors.New("payroll record is missing a required field")
	ErrInvalidField   = errors.New("payroll record has an invalid field")
	ErrEmptySheet     = errors.New("payroll sheet has no header row")
	ErrNoRecords      = errors.New("no payroll records for the selected month")
)

// MissingColumnsError aborts a whole batch before any row is processed.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

type Stage string

const (
	StageValidate  Stage = "validate"
	StageRender    Stage = "render"
	StageProtect   Stage = "protect"
	StageTransport Stage = "transport"
)

// StageError records which step of the per-record pipeline failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
