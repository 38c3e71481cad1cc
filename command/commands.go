package command

import (
	"encoding/json"
	"io"
)

// Empty is the result of commands whose reply carries nothing useful.
type Empty struct{}

// Version is mpv's client API version.
type Version struct {
	Major uint16
	Minor uint16
}

// GetVersion asks for the client API version, which mpv packs into one
// integer as major<<16 | minor.
type GetVersion struct{}

func (GetVersion) WriteArgs(w io.Writer) error { return writeArgs(w, "get_version") }

func (GetVersion) ParseData(data json.RawMessage) (Version, error) {
	v, err := decodeData[uint32](data)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: uint16(v>>16&0xFFFF), Minor: uint16(v&0xFFFF)}, nil
}

type GetProperty[T any] struct {
	Property Property[T]
}

// Get reads the current value of p.
func Get[T any](p Property[T]) GetProperty[T] { return GetProperty[T]{Property: p} }

func (c GetProperty[T]) WriteArgs(w io.Writer) error {
	return writeArgs(w, "get_property", c.Property.name)
}

func (c GetProperty[T]) ParseData(data json.RawMessage) (T, error) { return decodeData[T](data) }

type SetProperty[T any] struct {
	Property Property[T]
	Value    T
}

// Set assigns value to p.
func Set[T any](p Property[T], value T) SetProperty[T] {
	return SetProperty[T]{Property: p, Value: value}
}

func (c SetProperty[T]) WriteArgs(w io.Writer) error {
	return writeArgs(w, "set_property", c.Property.name, c.Value)
}

func (SetProperty[T]) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// ObserveProperty makes mpv send a property-change event carrying
// ObserverID every time the property changes.
type ObserveProperty struct {
	ObserverID uint32
	Name       string
}

func Observe[T any](observerID uint32, p Property[T]) ObserveProperty {
	return ObserveProperty{ObserverID: observerID, Name: p.name}
}

func (c ObserveProperty) WriteArgs(w io.Writer) error {
	return writeArgs(w, "observe_property", c.ObserverID, c.Name)
}

func (ObserveProperty) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// UnobserveProperty removes every observer registered with ObserverID.
type UnobserveProperty struct {
	ObserverID uint32
}

func Unobserve(observerID uint32) UnobserveProperty {
	return UnobserveProperty{ObserverID: observerID}
}

func (c UnobserveProperty) WriteArgs(w io.Writer) error {
	return writeArgs(w, "unobserve_property", c.ObserverID)
}

func (UnobserveProperty) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// CycleProperty steps a property to its next (or previous) value.
type CycleProperty struct {
	Name string
	Down bool
}

func Cycle[T any](p Property[T], down bool) CycleProperty {
	return CycleProperty{Name: p.name, Down: down}
}

func (c CycleProperty) WriteArgs(w io.Writer) error {
	if c.Down {
		return writeArgs(w, "cycle", c.Name, "down")
	}
	return writeArgs(w, "cycle", c.Name)
}

func (CycleProperty) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// LoadMode is the second argument of loadfile.
type LoadMode string

const (
	LoadReplace        LoadMode = "replace"
	LoadAppend         LoadMode = "append"
	LoadAppendPlay     LoadMode = "append-play"
	LoadInsertNext     LoadMode = "insert-next"
	LoadInsertNextPlay LoadMode = "insert-next-play"
)

// FileloadInfo is the reply to loadfile.
type FileloadInfo struct {
	PlaylistEntryID int64 `json:"playlist_entry_id"`
}

type Loadfile struct {
	Path string
	// Mode defaults to replace when empty.
	Mode LoadMode
}

func Load(path string) Loadfile { return Loadfile{Path: path} }

func (c Loadfile) WriteArgs(w io.Writer) error {
	if c.Mode == "" {
		return writeArgs(w, "loadfile", c.Path)
	}
	return writeArgs(w, "loadfile", c.Path, string(c.Mode))
}

func (Loadfile) ParseData(data json.RawMessage) (FileloadInfo, error) {
	return decodeData[FileloadInfo](data)
}

// Stop halts playback and clears the playlist unless KeepPlaylist is set.
type Stop struct {
	KeepPlaylist bool
}

func (c Stop) WriteArgs(w io.Writer) error {
	if c.KeepPlaylist {
		return writeArgs(w, "stop", "keep-playlist")
	}
	return writeArgs(w, "stop")
}

func (Stop) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// Seek moves the playback position. Flags is mpv's seek mode, e.g.
// "absolute" or "relative"; empty leaves mpv's default.
type Seek struct {
	Seconds float64
	Flags   string
}

func (c Seek) WriteArgs(w io.Writer) error {
	if c.Flags == "" {
		return writeArgs(w, "seek", c.Seconds)
	}
	return writeArgs(w, "seek", c.Seconds, c.Flags)
}

func (Seek) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }

// Screenshot takes a screenshot, saved to File when set.
type Screenshot struct {
	File string
}

func (c Screenshot) WriteArgs(w io.Writer) error {
	if c.File == "" {
		return writeArgs(w, "screenshot")
	}
	return writeArgs(w, "screenshot-to-file", c.File)
}

func (Screenshot) ParseData(json.RawMessage) (Empty, error) { return Empty{}, nil }
