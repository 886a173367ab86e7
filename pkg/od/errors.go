package od

import (
	"errors"
	"fmt"
)

// Validation failures
var (
	ErrSchemaViolation     = errors.New("schema violation")
	ErrAmbiguousDefinition = errors.New("ambiguous definition")
	ErrMissingDefinition   = errors.New("missing definition")
	ErrCrossCheckMismatch  = errors.New("built-in definition mismatch")
	ErrTypeCoercion        = errors.New("type coercion failure")
)

// Node operation failures
var (
	ErrIdxNotExist   = errors.New("index does not exist")
	ErrSubNotExist   = errors.New("subindex does not exist")
	ErrIdxExists     = errors.New("index already exists")
	ErrNotTail       = errors.New("list entries can only be added or removed at the tail")
	ErrNotList       = errors.New("index does not hold a list")
	ErrInvalidValue  = errors.New("invalid value")
	ErrFormula       = errors.New("invalid formula")
	ErrUnknownType   = errors.New("unknown type")
	ErrStructInvalid = errors.New("invalid struct")
)

// IndexError reports a failure located at one index
type IndexError struct {
	Index uint16
	Err   error
	Msg   string
}

func (e *IndexError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("index 0x%04X: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("index 0x%04X: %v: %s", e.Index, e.Err, e.Msg)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// NewIndexError wraps err with the offending index and a formatted message
func NewIndexError(index uint16, err error, format string, args ...any) error {
	return &IndexError{Index: index, Err: err, Msg: fmt.Sprintf(format, args...)}
}
