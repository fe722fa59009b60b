package converter

import (
	"errors"
	"fmt"
)

// UnsupportedFormatError is returned when no converter accepts the input
type UnsupportedFormatError struct {
	MIMEType  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension != "" {
		return fmt.Sprintf("unsupported format: %s (%s)", e.MIMEType, e.Extension)
	}
	return fmt.Sprintf("unsupported format: %s", e.MIMEType)
}

// ConversionError wraps a failure inside a specific converter
type ConversionError struct {
	Converter string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s conversion failed: %v", e.Converter, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure that is expected to succeed on retry
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient reports true so retry logic can detect the tag via errors.As
func (e *TransientError) Transient() bool {
	return true
}

// Transient wraps err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsUnsupportedFormat reports whether err is an UnsupportedFormatError
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}
