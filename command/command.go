// Package command defines the mpv JSON IPC envelope: the commands a client
// sends, and the events and results mpv sends back.
//
// docs: https://mpv.io/manual/stable/#json-ipc
//
// Outbound model:
//
//	{"request_id": 123, "command": ["name", "arg1", "arg2"]}
//
// request_id 0 asks mpv not to correlate the reply.
package command

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// ArgsWriter is implemented by anything that can be sent to mpv. WriteArgs
// writes the elements of the "command" array, comma separated, without the
// surrounding brackets.
type ArgsWriter interface {
	WriteArgs(w io.Writer) error
}

// Command is an ArgsWriter that also knows how to interpret the "data" field
// of a successful result. data is nil when the result carried no data field.
type Command[T any] interface {
	ArgsWriter
	ParseData(data json.RawMessage) (T, error)
}

// Frame writes the full newline-terminated envelope for cmd. A zero
// requestID means the reply is not correlated.
func Frame(w io.Writer, cmd ArgsWriter, requestID int64) error {
	var buf bytes.Buffer
	buf.WriteString(`{"request_id":`)
	buf.WriteString(strconv.FormatInt(requestID, 10))
	buf.WriteString(`,"command":[`)
	if err := cmd.WriteArgs(&buf); err != nil {
		return err
	}
	buf.WriteString("]}\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// Raw is command text pasted verbatim between the brackets of the "command"
// array, e.g. `"get_property","volume"`. Its result is the untyped data.
type Raw string

func (r Raw) WriteArgs(w io.Writer) error {
	_, err := io.WriteString(w, string(r))
	return err
}

func (Raw) ParseData(data json.RawMessage) (json.RawMessage, error) { return orNull(data), nil }

// Args is a command given as a list of values, each JSON encoded in turn.
type Args []any

func (a Args) WriteArgs(w io.Writer) error {
	for i, arg := range a {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeJSON(w, arg); err != nil {
			return err
		}
	}
	return nil
}

func (Args) ParseData(data json.RawMessage) (json.RawMessage, error) { return orNull(data), nil }

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeArgs(w io.Writer, args ...any) error { return Args(args).WriteArgs(w) }

func orNull(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}

// decodeData unmarshals data into T, treating a missing field as JSON null.
func decodeData[T any](data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(orNull(data), &v)
	return v, err
}
