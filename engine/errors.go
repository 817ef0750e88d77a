package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectionFailed is matched by every ConnectionError.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQueryFailed is matched by every QueryError.
	ErrQueryFailed = errors.New("query failed")

	// ErrUnsupportedEngine is matched by every UnsupportedEngineError.
	ErrUnsupportedEngine = errors.New("unsupported engine")

	// ErrOperationNotSupported is matched by every UnsupportedOperationError.
	ErrOperationNotSupported = errors.New("operation not supported by this engine")
)

// ConnectionError reports an unreachable host or an authentication failure.
type ConnectionError struct {
	Engine Type
	Host   string
	Port   int
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s:%d: %v", e.Engine, e.Host, e.Port, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// QueryError reports a failed statement and carries its text.
type QueryError struct {
	Engine    Type
	Statement string
	Cause     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v (statement: %s)", e.Engine, e.Cause, compactStatement(e.Statement))
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

func (e *QueryError) Is(target error) bool {
	return target == ErrQueryFailed
}

// UnsupportedEngineError is returned by the factory for an undeclared engine.
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported engine %q", e.Engine)
}

func (e *UnsupportedEngineError) Is(target error) bool {
	return target == ErrUnsupportedEngine
}

// UnsupportedOperationError is returned when an engine has no way to perform
// an operation.
type UnsupportedOperationError struct {
	Engine    Type
	Operation string
	Reason    string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.Engine, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.Engine, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrOperationNotSupported
}

// IsUnsupported reports whether err is an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}

// compactStatement collapses whitespace so multi-line catalog queries fit on
// one log line.
func compactStatement(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}
