package command

import (
	"encoding/json"
	"fmt"
)

// EventKind is the "event" field of an event.
type EventKind string

const (
	EventPropertyChange  EventKind = "property-change"
	EventStartFile       EventKind = "start-file"
	EventEndFile         EventKind = "end-file"
	EventFileLoaded      EventKind = "file-loaded"
	EventSeek            EventKind = "seek"
	EventPlaybackRestart EventKind = "playback-restart"
	EventShutdown        EventKind = "shutdown"
	EventAudioReconfig   EventKind = "audio-reconfig"
	EventVideoReconfig   EventKind = "video-reconfig"
	EventLogMessage      EventKind = "log-message"
	EventIdle            EventKind = "idle"
)

// Event is an unsolicited message from mpv.
type Event interface {
	Response
	Kind() EventKind
}

// PropertyChange is sent for properties registered with observe_property.
type PropertyChange struct {
	// ID of the observer.
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (PropertyChange) response()       {}
func (PropertyChange) Kind() EventKind { return EventPropertyChange }

func (e PropertyChange) String() string {
	return fmt.Sprintf("PropertyChange{id: %d, name: %s, data: %s}", e.ID, e.Name, orNull(e.Data))
}

type StartFile struct {
	PlaylistEntryID int64 `json:"playlist_entry_id"`
}

func (StartFile) response()       {}
func (StartFile) Kind() EventKind { return EventStartFile }

type EndFile struct {
	PlaylistEntryID int64  `json:"playlist_entry_id"`
	Reason          string `json:"reason,omitempty"`
	FileError       string `json:"file_error,omitempty"`
}

func (EndFile) response()       {}
func (EndFile) Kind() EventKind { return EventEndFile }

type LogMessage struct {
	Prefix string `json:"prefix"`
	Level  string `json:"level"`
	Text   string `json:"text"`
}

func (LogMessage) response()       {}
func (LogMessage) Kind() EventKind { return EventLogMessage }

// Notification is an event whose name is its whole payload, such as seek or
// shutdown.
type Notification struct {
	Name EventKind
}

func (Notification) response()         {}
func (n Notification) Kind() EventKind { return n.Name }

// UnknownEvent keeps events this package has no type for.
type UnknownEvent struct {
	Name EventKind
	Raw  json.RawMessage
}

func (UnknownEvent) response()         {}
func (e UnknownEvent) Kind() EventKind { return e.Name }

func (e UnknownEvent) String() string { return fmt.Sprintf("UnknownEvent{%s}", e.Raw) }

func parseEvent(kind EventKind, line []byte) (Event, error) {
	switch kind {
	case EventPropertyChange:
		return decodeEvent[PropertyChange](line)
	case EventStartFile:
		return decodeEvent[StartFile](line)
	case EventEndFile:
		return decodeEvent[EndFile](line)
	case EventLogMessage:
		return decodeEvent[LogMessage](line)
	case EventFileLoaded, EventSeek, EventPlaybackRestart, EventShutdown,
		EventAudioReconfig, EventVideoReconfig, EventIdle:
		return Notification{Name: kind}, nil
	default:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		return UnknownEvent{Name: kind, Raw: raw}, nil
	}
}

func decodeEvent[E Event](line []byte) (Event, error) {
	var e E
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", e.Kind(), err)
	}
	return e, nil
}
