// Copyright 2017 Microsoft. All rights reserved.
// MIT License

// Package vxerr holds the sentinel and typed errors the network package
// surfaces to its callers, per the error kinds this driver distinguishes:
// KernelCommandFailed, NetworkNotFound, EndpointNotFound and BadOptions.
// Persistence failures have no exported type of their own: they are always
// logged and absorbed, never propagated (see store.Store).
package vxerr

import "github.com/pkg/errors"

// Sentinel errors returned directly by Manager/Network methods.
var (
	ErrNetworkNotFound  = errors.New("network not found")
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrBadOptions       = errors.New("invalid options")
)

// KernelCommandError wraps a subprocess failure that was not the benign
// "File exists" race. Op names the logical operation attempted (not the
// raw command line) so callers and logs read naturally.
type KernelCommandError struct {
	Op     string
	Stderr string
	Cause  error
}

func (e *KernelCommandError) Error() string {
	if e.Stderr != "" {
		return "kernel command failed: " + e.Op + ": " + e.Cause.Error() + ": " + e.Stderr
	}
	return "kernel command failed: " + e.Op + ": " + e.Cause.Error()
}

func (e *KernelCommandError) Unwrap() error {
	return e.Cause
}

// NewKernelCommandError constructs a KernelCommandError.
func NewKernelCommandError(op, stderr string, cause error) error {
	return &KernelCommandError{Op: op, Stderr: stderr, Cause: cause}
}

// IsKernelCommandError reports whether err is (or wraps) a KernelCommandError.
func IsKernelCommandError(err error) bool {
	var k *KernelCommandError
	return errors.As(err, &k)
}
