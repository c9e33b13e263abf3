package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes a single schema-rule violation on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (fe FieldError) String() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// ValidationError reports schema-rule violations for a candidate record.
// It carries the full field-level error list so callers can surface exactly
// which fields failed. Always classified as invalid.
type ValidationError struct {
	Table  string
	Fields []FieldError
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Fields))
	for _, fe := range ve.Fields {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("validation failed for %s: %s", ve.Table, strings.Join(parts, "; "))
}

// FieldNames returns the violated field names in declaration order.
func (ve *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(ve.Fields))
	for _, fe := range ve.Fields {
		names = append(names, fe.Field)
	}
	return names
}

// NewValidationError builds a ValidationError for a table from field errors.
func NewValidationError(table string, fields []FieldError) *ValidationError {
	return &ValidationError{Table: table, Fields: fields}
}

// AsValidation extracts a ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// ForeignKeyError reports a foreign-key field referencing a record that does
// not exist in the target table. Always classified as invalid.
type ForeignKeyError struct {
	Table    string // table being written
	Field    string // FK field on the candidate record
	RefTable string // referenced table
	ID       string // referenced id that was not found
}

// Error implements the error interface
func (fke *ForeignKeyError) Error() string {
	return fmt.Sprintf("foreign key violation on %s.%s: no %s record with id %q",
		fke.Table, fke.Field, fke.RefTable, fke.ID)
}

// NewForeignKeyError builds a ForeignKeyError.
func NewForeignKeyError(table, field, refTable, id string) *ForeignKeyError {
	return &ForeignKeyError{Table: table, Field: field, RefTable: refTable, ID: id}
}

// AsForeignKey extracts a ForeignKeyError from an error chain.
func AsForeignKey(err error) (*ForeignKeyError, bool) {
	var fke *ForeignKeyError
	ok := errors.As(err, &fke)
	return fke, ok
}
