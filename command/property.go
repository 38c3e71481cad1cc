package command

import (
	"encoding/json"
	"fmt"
)

// https://mpv.io/manual/stable/#properties

// Property names an mpv property and fixes the Go type of its value.
type Property[T any] struct {
	name string
}

// NewProperty binds name to value type T.
func NewProperty[T any](name string) Property[T] { return Property[T]{name: name} }

// Untyped is a property of any name whose value is kept as raw JSON.
func Untyped(name string) Property[json.RawMessage] { return Property[json.RawMessage]{name: name} }

func (p Property[T]) Name() string { return p.name }

func (p Property[T]) String() string { return p.name }

var (
	Volume     = NewProperty[float64]("volume")
	PercentPos = NewProperty[float64]("percent-pos")
	TimePos    = NewProperty[float64]("time-pos")
	Duration   = NewProperty[float64]("duration")
	Speed      = NewProperty[float64]("speed")

	Path             = NewProperty[string]("path")
	WorkingDirectory = NewProperty[string]("working-directory")
	MediaTitle       = NewProperty[string]("media-title")
	Filename         = NewProperty[string]("filename")
	Title            = NewProperty[string]("title")

	Aid = NewProperty[TrackID]("aid")
	Vid = NewProperty[TrackID]("vid")
	Sid = NewProperty[TrackID]("sid")

	Fullscreen = NewProperty[bool]("fullscreen")
	Pause      = NewProperty[bool]("pause")
	Mute       = NewProperty[bool]("mute")
)

// KnownProperties lists the names of the typed properties above.
var KnownProperties = []string{
	Volume.name, PercentPos.name, TimePos.name, Duration.name, Speed.name,
	Path.name, WorkingDirectory.name, MediaTitle.name, Filename.name, Title.name,
	Aid.name, Vid.name, Sid.name,
	Fullscreen.name, Pause.name, Mute.name,
}

// TrackID selects an audio, video or subtitle track. On the wire it is a
// track index, "auto", or false (or "no") for no track.
type TrackID struct {
	kind  trackKind
	index uint32
}

type trackKind uint8

const (
	trackAuto trackKind = iota
	trackIndex
	trackNone
)

var (
	TrackAuto = TrackID{kind: trackAuto}
	TrackNone = TrackID{kind: trackNone}
)

// TrackIndex selects track i.
func TrackIndex(i uint32) TrackID { return TrackID{kind: trackIndex, index: i} }

// Index returns the track index and whether t selects a specific track.
func (t TrackID) Index() (uint32, bool) { return t.index, t.kind == trackIndex }

func (t TrackID) IsAuto() bool { return t.kind == trackAuto }
func (t TrackID) IsNone() bool { return t.kind == trackNone }

func (t TrackID) String() string {
	switch t.kind {
	case trackIndex:
		return fmt.Sprintf("%d", t.index)
	case trackNone:
		return "no"
	default:
		return "auto"
	}
}

func (t TrackID) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case trackIndex:
		return json.Marshal(t.index)
	case trackNone:
		return []byte("false"), nil
	default:
		return []byte(`"auto"`), nil
	}
}

func (t *TrackID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		if v < 0 || v != float64(uint32(v)) {
			return fmt.Errorf("invalid track index %v", v)
		}
		*t = TrackIndex(uint32(v))
	case bool:
		if v {
			*t = TrackAuto
		} else {
			*t = TrackNone
		}
	case string:
		// mpv reports a disabled track as "no"; any other string means auto
		if v == "no" {
			*t = TrackNone
		} else {
			*t = TrackAuto
		}
	default:
		*t = TrackAuto
	}
	return nil
}
