// Package testutil holds helpers shared by package tests
package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// CreateTestLogger creates a logger suitable for testing
func CreateTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	logger.SetOutput(io.Discard)
	return logger
}

// WithEnv sets an environment variable for the duration of a test and returns a
// function restoring the previous value
func WithEnv(t *testing.T, key, value string) func() {
	t.Helper()
	previous, existed := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
	return func() {
		if existed {
			_ = os.Setenv(key, previous)
		} else {
			_ = os.Unsetenv(key)
		}
	}
}
