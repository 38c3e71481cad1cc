package link

import (
	"errors"
	"fmt"

	"github.com/tr1v3r/mpvsock/command"
)

var (
	// ErrTimeout is returned by WaitRead when the timeout elapses with
	// nothing to read. The channel is still usable.
	ErrTimeout = errors.New("timed out waiting for the mpv socket to become readable")
	// ErrChannelClosed means mpv closed its end and no complete line is left.
	ErrChannelClosed = errors.New("mpv closed the channel")
)

// InitOp names the construction step that failed.
type InitOp string

const (
	OpSocketPair     InitOp = "create socket pair"
	OpNonblocking    InitOp = "set channel to nonblocking"
	OpSpawn          InitOp = "spawn process"
	OpConnect        InitOp = "connect to server socket"
	OpRemovePrevious InitOp = "remove previous socket"
)

// InitError is returned when a link could not be built.
type InitError struct {
	Op  InitOp
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("failed to %s: %v", e.Op, e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// DeinitOp names the teardown step that failed.
type DeinitOp string

const (
	OpShutdown DeinitOp = "shutdown socket"
	OpWait     DeinitOp = "wait for the child process"
)

// DeinitError is returned by Close. The transport is closed regardless.
type DeinitError struct {
	Op  DeinitOp
	Err error
}

func (e *DeinitError) Error() string { return fmt.Sprintf("failed to %s: %v", e.Op, e.Err) }
func (e *DeinitError) Unwrap() error { return e.Err }

// SendError wraps a failure to frame or write a command.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("could not write into the stream: %v", e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError wraps a failure to read or classify a response: I/O errors,
// malformed JSON, *RequestIDMismatchError and *UnexpectedResultError.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string { return fmt.Sprintf("could not receive response: %v", e.Err) }
func (e *ReceiveError) Unwrap() error { return e.Err }

// RequestIDMismatchError is a result that does not answer the awaited
// request. Found is 0 when the result had no request_id.
type RequestIDMismatchError struct {
	Expected int64
	Found    int64
}

func (e *RequestIDMismatchError) Error() string {
	return fmt.Sprintf("expected request_id = %d but found request_id = %d", e.Expected, e.Found)
}

// UnexpectedResultError is a result read while only events were expected.
type UnexpectedResultError struct {
	Result *command.Result
}

func (e *UnexpectedResultError) Error() string {
	return fmt.Sprintf("expected only events but found a result response: %s", e.Result)
}

// DataParseError means the result data did not have the shape the command
// expected.
type DataParseError struct {
	Err error
}

func (e *DataParseError) Error() string {
	return fmt.Sprintf("error while parsing response data: %v", e.Err)
}
func (e *DataParseError) Unwrap() error { return e.Err }
