// Package errors provides examples of structured error handling.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/feaout/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeUnregisteredField, "field not registered").
		WithDetail("field", "RMS_DISP_Q").
		WithDetail("namespace", "history")

	fmt.Println(err.Error())

	// Output:
	// unregistered_field: field not registered
}

// ExampleWrap shows how sink I/O errors are wrapped with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeFile, "failed to write history row").
		WithDetail("file", "history.csv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if errors.Is(err, io.ErrShortWrite) {
		fmt.Println("Cause preserved")
	}
	fmt.Println("Retryable:", errors.IsRetryable(err))

	// Output:
	// This is a file error
	// Cause preserved
	// Retryable: false
}
