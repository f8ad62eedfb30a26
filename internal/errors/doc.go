// Package errors defines error types for the bridge SDK.
//
// This package provides structured error types that wrap the different failure
// scenarios of a bridge session: launching the worker, talking to it over its
// pipes, and correlating its responses. All error types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
