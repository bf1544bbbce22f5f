package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrInvalidInput matches every error returned by InvalidInput.
var ErrInvalidInput = errors.New("invalid input")

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidInput reports a rejected request input with msg as the message.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}
