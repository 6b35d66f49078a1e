package node

import "fmt"

// ErrorCode classifies why an operation failed, per the taxonomy of §7: callers use
// it to tell a peer's fault (Duplicate, BadBlock, CacheFull) from ours (IoError,
// CorruptStore, OutOfMemory).
type ErrorCode string

const (
	CodeDuplicate    ErrorCode = "duplicate"
	CodeBadBlock     ErrorCode = "bad_block"
	CodeCacheFull    ErrorCode = "cache_full"
	CodeIoError      ErrorCode = "io_error"
	CodeCorruptStore ErrorCode = "corrupt_store"
	CodeOutOfMemory  ErrorCode = "out_of_memory"
)

// NodeError is the concrete error type carried through the validator and store;
// Unwrap lets callers errors.Is/errors.As through to the underlying *os.PathError or
// io.ErrUnexpectedEOF for IoError/CorruptStore.
type NodeError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *NodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *NodeError) Unwrap() error { return e.Err }

func newErr(code ErrorCode, msg string) error {
	return &NodeError{Code: code, Msg: msg}
}

func wrapErr(code ErrorCode, msg string, err error) error {
	return &NodeError{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a *NodeError.
func CodeOf(err error) ErrorCode {
	var ne *NodeError
	if as, ok := err.(*NodeError); ok {
		ne = as
		return ne.Code
	}
	return ""
}

// ErrorSink is the dependency-injected diagnostic callback of §6.4/§9: informational
// only, it must never call back into the Validator.
type ErrorSink func(kind ErrorCode, message string)
