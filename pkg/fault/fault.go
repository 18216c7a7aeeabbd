// Package fault defines the error classes shared by the teleoperation core.
//
// Every fatal error returned by the core wraps exactly one of the sentinels
// below, so callers can classify it with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned at construction time for invalid input:
	// mismatched vector lengths, non-positive dt, degenerate noise settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrNumerical is returned when the state estimator cannot produce a
	// trustworthy estimate (singular or ill-conditioned innovation covariance).
	ErrNumerical = errors.New("numerical error")

	// ErrConnectivity is returned when a robot telemetry or command path fails.
	ErrConnectivity = errors.New("connectivity error")
)

// Configf returns an error wrapping ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Numericalf returns an error wrapping ErrNumerical.
func Numericalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNumerical, fmt.Sprintf(format, args...))
}

// Connectivity wraps err as a connectivity failure of the named robot.
// A nil err yields nil.
func Connectivity(robot string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectivity) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", robot, ErrConnectivity, err)
}

// IsFatal reports whether err belongs to one of the session-ending classes.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrNumerical) ||
		errors.Is(err, ErrConnectivity)
}
