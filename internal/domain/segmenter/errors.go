package segmenter

import "errors"

// ErrInvalidInput matches every *InvalidInputError under errors.Is.
var ErrInvalidInput = errors.New("invalid segmenter input")

const invalidInputMessage = "Invalid input: rawText must be a non-empty string."

// InvalidInputError is returned when the segmenter is handed something that
// is not a non-empty string. It is raised before any splitting happens and
// callers treat it as a hard stop for the document.
type InvalidInputError struct {
	Message string
}

func newInvalidInput() *InvalidInputError {
	return &InvalidInputError{Message: invalidInputMessage}
}

func (e *InvalidInputError) Error() string {
	return e.Message
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
