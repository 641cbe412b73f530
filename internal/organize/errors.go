package organize

import "fmt"

// DataOrganizationError tags an error with the pipeline stage that
// produced it and the offending record or context. It is the single error
// kind surfaced by the export pipeline.
type DataOrganizationError struct {
	Op      string `json:"operation"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     error  `json:"-"`
}

// NewError creates a stage-tagged error without an underlying cause.
func NewError(op, message string, data any) *DataOrganizationError {
	return &DataOrganizationError{Op: op, Message: message, Data: data}
}

// WrapError creates a stage-tagged error wrapping an underlying cause.
func WrapError(op, message string, err error, data any) *DataOrganizationError {
	return &DataOrganizationError{Op: op, Message: message, Err: err, Data: data}
}

func (e *DataOrganizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DataOrganizationError) Unwrap() error {
	return e.Err
}
