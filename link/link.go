// Package link drives an mpv process over its JSON IPC socket.
//
// A Link sends one command at a time and waits for the result carrying the
// same request id. Events that arrive in between are queued and can be
// inspected with Events, PollEvents or WaitEvents. A Link is not safe for
// concurrent use.
package link

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"time"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/internal/buffer"
	"github.com/tr1v3r/mpvsock/internal/monitoring"
)

type Link struct {
	transport *Transport
	// next request id to hand out, never 0
	currentID int64
	buf       *buffer.Buffer
	events    []command.Event
}

// New takes ownership of t and switches it to non-blocking mode. t is closed
// if that fails.
func New(t *Transport) (*Link, error) {
	if err := t.SetNonblocking(true); err != nil {
		_ = t.Close()
		return nil, &InitError{Op: OpNonblocking, Err: err}
	}
	monitoring.GetMetrics().RecordLinkOpened()

	return &Link{
		transport: t,
		currentID: 1,
		buf:       buffer.New(),
	}, nil
}

// Connect links to a player already listening on socketPath.
func Connect(socketPath string) (*Link, error) {
	t, err := ConnectTransport(socketPath)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// SpawnServer starts a player listening on socketPath and links to it.
func SpawnServer(ctx context.Context, socketPath string, cfg SpawnConfig) (*Link, error) {
	t, err := SpawnServerTransport(ctx, socketPath, cfg)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// SpawnClient starts a player connected through an anonymous socket pair.
func SpawnClient(cfg SpawnConfig) (*Link, error) {
	t, err := SpawnClientTransport(cfg)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// Transport returns the underlying transport.
func (l *Link) Transport() *Transport { return l.transport }

// Close tears the transport down. It is safe to call more than once.
func (l *Link) Close() error {
	if l.transport.IsClosed() {
		return nil
	}
	monitoring.GetMetrics().RecordLinkClosed()
	return l.transport.Close()
}

func (l *Link) IsClosed() bool { return l.transport.IsClosed() }

// nextID returns the id for a new request. Ids increase by one and wrap
// from math.MaxInt64 back to 1.
func (l *Link) nextID() int64 {
	id := l.currentID
	if l.currentID == math.MaxInt64 {
		l.currentID = 1
	} else {
		l.currentID++
	}
	return id
}

// Run sends cmd, waits for its result and decodes the result data.
//
// The error is a *SendError, a *ReceiveError, a *command.ResultError when mpv
// rejected the command, or a *DataParseError when the data had the wrong
// shape.
func Run[T any](l *Link, cmd command.Command[T]) (T, error) {
	var zero T

	result, err := l.roundTrip(cmd)
	if err != nil {
		return zero, err
	}

	data, err := cmd.ParseData(result.Data)
	if err != nil {
		return zero, &DataParseError{Err: err}
	}
	return data, nil
}

// RunCommand is Run for commands whose result is wanted as raw JSON. The
// data is "null" when the result had none.
func (l *Link) RunCommand(cmd command.ArgsWriter) (json.RawMessage, error) {
	result, err := l.roundTrip(cmd)
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return result.Data, nil
}

// Send writes cmd without waiting for the reply and returns its request id.
// The caller must collect the reply with AwaitResult before running any
// other command or polling events.
func (l *Link) Send(cmd command.ArgsWriter) (int64, error) {
	id := l.nextID()
	if err := l.send(cmd, id); err != nil {
		return 0, err
	}
	return id, nil
}

// AwaitResult waits for the result of the request id returned by Send.
// Unlike Run it does not turn an error status into an error.
func (l *Link) AwaitResult(id int64) (*command.Result, error) {
	result, err := l.nextResult()
	if err != nil {
		return nil, err
	}
	log.Debug("received result: %s", result)

	if result.RequestID == nil || *result.RequestID != id {
		return nil, l.receiveError(&RequestIDMismatchError{Expected: id, Found: result.ID()})
	}
	return result, nil
}

func (l *Link) roundTrip(cmd command.ArgsWriter) (*command.Result, error) {
	id, err := l.Send(cmd)
	if err != nil {
		return nil, err
	}

	result, err := l.AwaitResult(id)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		monitoring.GetMetrics().RecordResultError()
		return nil, err
	}
	return result, nil
}

func (l *Link) send(cmd command.ArgsWriter, id int64) error {
	var buf bytes.Buffer
	if err := command.Frame(&buf, cmd, id); err != nil {
		monitoring.GetMetrics().RecordSendError()
		return &SendError{Err: err}
	}
	log.Debug("sending command: %s", bytes.TrimSuffix(buf.Bytes(), []byte("\n")))

	if _, err := l.transport.Write(buf.Bytes()); err != nil {
		monitoring.GetMetrics().RecordSendError()
		return &SendError{Err: err}
	}
	monitoring.GetMetrics().RecordCommandSent()
	return nil
}

// nextResponse returns the next buffered response, reading whatever the
// socket has if no complete line is buffered. It returns nil, nil when no
// message is available yet.
func (l *Link) nextResponse() (command.Response, error) {
	line, ok := l.buf.ConsumeLine()
	if !ok {
		readErr := l.buf.ReadNonblocking(l.transport)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, l.receiveError(readErr)
		}
		if line, ok = l.buf.ConsumeLine(); !ok {
			if readErr != nil {
				return nil, l.receiveError(ErrChannelClosed)
			}
			return nil, nil
		}
	}

	resp, err := command.ParseResponse(line)
	if err != nil {
		return nil, l.receiveError(err)
	}
	return resp, nil
}

// nextResult reads until a result arrives, queueing events on the way and
// blocking on the socket whenever nothing is buffered.
func (l *Link) nextResult() (*command.Result, error) {
	defer l.buf.Shift()

	for {
		resp, err := l.nextResponse()
		if err != nil {
			return nil, err
		}

		switch resp := resp.(type) {
		case nil:
			if err := l.transport.WaitRead(NoTimeout); err != nil {
				return nil, l.receiveError(err)
			}
		case command.Event:
			l.queue(resp)
		case *command.Result:
			monitoring.GetMetrics().RecordResult()
			return resp, nil
		}
	}
}

// PollEvents queues every event that can be read without blocking and
// returns the queue. It must not be called while a result is owed: a result
// here is reported as an *UnexpectedResultError.
//
// The returned slice is valid until the next ClearEvents or DrainEvents.
func (l *Link) PollEvents() ([]command.Event, error) {
	defer l.buf.Shift()

	for {
		resp, err := l.nextResponse()
		if err != nil {
			return nil, err
		}

		switch resp := resp.(type) {
		case nil:
			return l.events, nil
		case command.Event:
			l.queue(resp)
		case *command.Result:
			return nil, l.receiveError(&UnexpectedResultError{Result: resp})
		}
	}
}

// WaitEvents is PollEvents that, when nothing is queued, first waits up to
// timeout for the socket to become readable. Timing out is not an error.
func (l *Link) WaitEvents(timeout time.Duration) ([]command.Event, error) {
	events, err := l.PollEvents()
	if err != nil || len(events) > 0 {
		return events, err
	}

	if err := l.transport.WaitRead(timeout); err != nil {
		if errors.Is(err, ErrTimeout) {
			return l.events, nil
		}
		return nil, l.receiveError(err)
	}
	return l.PollEvents()
}

// Events returns the queued events in arrival order.
func (l *Link) Events() []command.Event { return l.events }

// ClearEvents empties the event queue.
func (l *Link) ClearEvents() { l.events = nil }

// DrainEvents returns the queued events and empties the queue.
func (l *Link) DrainEvents() []command.Event {
	events := l.events
	l.events = nil
	return events
}

func (l *Link) queue(event command.Event) {
	log.Debug("queued event: %v", event)
	monitoring.GetMetrics().RecordEvent()
	l.events = append(l.events, event)
}

func (l *Link) receiveError(err error) error {
	monitoring.GetMetrics().RecordReceiveError()
	return &ReceiveError{Err: err}
}
