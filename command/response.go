package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound model, one JSON object per line, told apart by shape:
//
//	{"event": "idle"}
//	{"event": "property-change", "id": 1, "name": "volume", "data": 50}
//	{"error": "success", "data": "value", "request_id": 123}
//	{"error": "property not found", "request_id": 123}

// ErrUnknownMessage is returned for well-formed JSON that is neither an event
// nor a result.
var ErrUnknownMessage = errors.New("message has neither event nor error field")

// Response is either an Event or a *Result.
type Response interface {
	response()
}

// ParseResponse classifies and decodes one line received from mpv.
func ParseResponse(line []byte) (Response, error) {
	var probe struct {
		Event *string `json:"event"`
		Error *Status `json:"error"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, err
	}

	switch {
	case probe.Event != nil:
		return parseEvent(EventKind(*probe.Event), line)
	case probe.Error != nil:
		var result Result
		if err := json.Unmarshal(line, &result); err != nil {
			return nil, err
		}
		return &result, nil
	default:
		return nil, ErrUnknownMessage
	}
}

// Status is the "error" field of a result.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusInvalidParameter    Status = "invalid parameter"
	StatusPropertyUnavailable Status = "property unavailable"
	StatusPropertyNotFound    Status = "property not found"
	StatusErrorRunningCommand Status = "error running command"
)

// Known reports whether s is one of the statuses in the catalog above.
func (s Status) Known() bool {
	switch s {
	case StatusSuccess, StatusInvalidParameter, StatusPropertyUnavailable,
		StatusPropertyNotFound, StatusErrorRunningCommand:
		return true
	}
	return false
}

// Result is mpv's reply to a command.
type Result struct {
	Status    Status          `json:"error"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *int64          `json:"request_id,omitempty"`
}

func (*Result) response() {}

// Success reports whether mpv accepted the command.
func (r *Result) Success() bool { return r.Status == StatusSuccess }

// ID returns the request id, 0 when absent or null.
func (r *Result) ID() int64 {
	if r.RequestID == nil {
		return 0
	}
	return *r.RequestID
}

// Err returns nil for a successful result and a *ResultError otherwise.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	return &ResultError{Status: r.Status, RequestID: r.ID()}
}

func (r *Result) String() string {
	return fmt.Sprintf("Result{error: %q, request_id: %d, data: %s}", r.Status, r.ID(), orNull(r.Data))
}

// ResultError is a well-formed error reply: mpv rejected the command, the
// channel itself is fine.
type ResultError struct {
	Status    Status
	RequestID int64
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("mpv returned error %q for request %d", e.Status, e.RequestID)
}

// Is matches another *ResultError with the same status, so callers can write
// errors.Is(err, &command.ResultError{Status: command.StatusPropertyNotFound}).
func (e *ResultError) Is(target error) bool {
	t, ok := target.(*ResultError)
	return ok && t.Status == e.Status
}
