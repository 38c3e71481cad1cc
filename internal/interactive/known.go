package interactive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/link"
)

var errUnrecognized = errors.New("unrecognized command")

// knownProperty runs get and set for one catalog property with its value
// decoded to the property's type.
type knownProperty struct {
	name string
	get  func(l *link.Link) (any, error)
	set  func(l *link.Link, value string) (any, error)
}

func known[T any](p command.Property[T]) knownProperty {
	return knownProperty{
		name: p.Name(),
		get:  func(l *link.Link) (any, error) { return link.Run(l, command.Get(p)) },
		set: func(l *link.Link, value string) (any, error) {
			var v T
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				return nil, fmt.Errorf("parsing %s value: %w", p.Name(), err)
			}
			return link.Run(l, command.Set(p, v))
		},
	}
}

var knownProperties = map[string]knownProperty{}

func init() {
	for _, p := range []knownProperty{
		known(command.Volume), known(command.PercentPos), known(command.TimePos),
		known(command.Duration), known(command.Speed),
		known(command.Path), known(command.WorkingDirectory), known(command.MediaTitle),
		known(command.Filename), known(command.Title),
		known(command.Aid), known(command.Vid), known(command.Sid),
		known(command.Fullscreen), known(command.Pause), known(command.Mute),
	} {
		knownProperties[p.name] = p
	}
}

// untyped treats the value as JSON when it parses and as a plain string
// otherwise.
func untyped(name string) knownProperty {
	p := command.Untyped(name)
	return knownProperty{
		name: name,
		get:  func(l *link.Link) (any, error) { return link.Run(l, command.Get(p)) },
		set: func(l *link.Link, value string) (any, error) {
			raw := json.RawMessage(value)
			if !json.Valid(raw) {
				quoted, err := json.Marshal(value)
				if err != nil {
					return nil, err
				}
				raw = quoted
			}
			return link.Run(l, command.Set(p, raw))
		},
	}
}

func lookup(name string) knownProperty {
	if p, ok := knownProperties[name]; ok {
		return p
	}
	return untyped(name)
}

func (s *Session) runKnown(line string) (any, error) {
	if strings.TrimSpace(line) == "get_version" {
		return link.Run(s.link, command.GetVersion{})
	}

	if rest, ok := strings.CutPrefix(line, "get_property"); ok {
		name := strings.TrimSpace(rest)
		if name == "" {
			return nil, errors.New("get_property expects an argument")
		}
		return lookup(name).get(s.link)
	}

	if rest, ok := strings.CutPrefix(line, "set_property"); ok {
		name, value, ok := strings.Cut(strings.TrimSpace(rest), " ")
		if !ok || name == "" || value == "" {
			return nil, errors.New("set_property expects two arguments")
		}
		return lookup(name).set(s.link, value)
	}

	return nil, errUnrecognized
}
