// Package mpvtest provides a fake mpv speaking the JSON IPC protocol, for
// tests that must not depend on a real player.
//
// Test binaries that spawn the fake as a child call RunIfRequested from
// TestMain and use Executable as the player binary with EnvVar set.
package mpvtest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
)

// EnvVar makes a test binary behave as the fake player when set to "1".
const EnvVar = "MPVSOCK_FAKE_MPV"

// APIVersion is what the fake answers to get_version: 2.1.
const APIVersion = 2<<16 | 1

// Executable returns the running test binary, to be spawned as the player.
func Executable() string { return os.Args[0] }

// RunIfRequested turns the process into the fake player when EnvVar is set,
// serving the socket named by --input-ipc-server or --input-ipc-client, and
// exits when the session ends.
func RunIfRequested() {
	if os.Getenv(EnvVar) != "1" {
		return
	}
	if err := runChild(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fake mpv: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func runChild(args []string) error {
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--input-ipc-server="):
			return listenAndServe(strings.TrimPrefix(arg, "--input-ipc-server="))
		case strings.HasPrefix(arg, "--input-ipc-client=fd://"):
			fd, err := strconv.Atoi(strings.TrimPrefix(arg, "--input-ipc-client=fd://"))
			if err != nil {
				return err
			}
			conn, err := net.FileConn(os.NewFile(uintptr(fd), "ipc"))
			if err != nil {
				return err
			}
			defer conn.Close()
			return New().Serve(conn)
		}
	}
	return fmt.Errorf("no ipc option in %q", args)
}

// listenAndServe creates the socket under a temporary name and renames it
// into place so a client never sees a socket that is not yet listening.
func listenAndServe(path string) error {
	tmp := path + ".tmp"
	ln, err := net.Listen("unix", tmp)
	if err != nil {
		return err
	}
	defer ln.Close()
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	defer os.Remove(path)

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	return New().Serve(conn)
}

// Player is the fake's state. It is safe to inspect from other goroutines.
type Player struct {
	mu        sync.Mutex
	props     map[string]any
	observers map[uint32]string
	nextEntry int64
	commands  []string
}

func New() *Player {
	return &Player{
		props: map[string]any{
			"volume":     100.0,
			"pause":      false,
			"mute":       false,
			"fullscreen": false,
			"speed":      1.0,
			"time-pos":   0.0,
			"duration":   120.0,
			"title":      "",
			"aid":        "auto",
			"sid":        false,
		},
		observers: map[uint32]string{},
		nextEntry: 1,
	}
}

// Property returns the current value of a property.
func (p *Player) Property(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.props[name]
	return v, ok
}

// Commands returns the names of the commands received so far.
func (p *Player) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// Serve answers requests read from rw until rw is closed or a plain-text
// quit command arrives.
func (p *Player) Serve(rw io.ReadWriter) error {
	sc := bufio.NewScanner(rw)
	w := bufio.NewWriter(rw)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "quit" {
			return nil
		}

		var req request
		var out []any
		if err := json.Unmarshal([]byte(line), &req); err != nil || len(req.Command) == 0 {
			out = []any{map[string]any{"error": "invalid parameter"}}
		} else {
			out = p.handle(req)
		}

		for _, msg := range out {
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			_, _ = w.Write(append(data, '\n'))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return sc.Err()
}

// handle returns the messages sent back for req, events included, in wire
// order.
func (p *Player) handle(req request) []any {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, _ := req.Command[0].(string)
	args := req.Command[1:]
	p.commands = append(p.commands, name)

	success := func(data any) map[string]any {
		m := map[string]any{"error": "success", "request_id": req.RequestID}
		if data != nil {
			m["data"] = data
		}
		return m
	}
	failure := func(status string) map[string]any {
		return map[string]any{"error": status, "request_id": req.RequestID}
	}
	event := func(kind string) map[string]any { return map[string]any{"event": kind} }

	switch name {
	case "get_version":
		return []any{success(APIVersion)}

	case "get_property":
		prop, _ := argString(args, 0)
		v, ok := p.props[prop]
		if !ok {
			return []any{failure("property not found")}
		}
		return []any{success(v)}

	case "set_property":
		prop, _ := argString(args, 0)
		if len(args) < 2 {
			return []any{failure("invalid parameter")}
		}
		if _, ok := p.props[prop]; !ok {
			return []any{failure("property not found")}
		}
		p.props[prop] = args[1]
		return append(p.changed(prop), success(nil))

	case "cycle":
		prop, _ := argString(args, 0)
		b, ok := p.props[prop].(bool)
		if !ok {
			return []any{failure("property unavailable")}
		}
		p.props[prop] = !b
		return append(p.changed(prop), success(nil))

	case "observe_property":
		id, ok := argUint(args, 0)
		prop, ok2 := argString(args, 1)
		if !ok || !ok2 {
			return []any{failure("invalid parameter")}
		}
		p.observers[id] = prop
		// mpv reports the current value right after accepting the observer
		return []any{success(nil), p.propertyChange(id, prop)}

	case "unobserve_property":
		id, _ := argUint(args, 0)
		delete(p.observers, id)
		return []any{success(nil)}

	case "loadfile":
		path, ok := argString(args, 0)
		if !ok {
			return []any{failure("invalid parameter")}
		}
		entry := p.nextEntry
		p.nextEntry++
		p.props["path"] = path
		p.props["time-pos"] = 0.0
		return []any{
			map[string]any{"event": "start-file", "playlist_entry_id": entry},
			success(map[string]any{"playlist_entry_id": entry}),
			event("file-loaded"),
		}

	case "stop":
		delete(p.props, "path")
		return []any{
			success(nil),
			map[string]any{"event": "end-file", "reason": "stop", "playlist_entry_id": p.nextEntry - 1},
			event("idle"),
		}

	case "seek":
		if len(args) == 0 {
			return []any{failure("invalid parameter")}
		}
		secs, ok := args[0].(float64)
		if !ok {
			return []any{failure("invalid parameter")}
		}
		pos, _ := p.props["time-pos"].(float64)
		if len(args) > 1 && args[1] == "absolute" {
			pos = 0
		}
		p.props["time-pos"] = pos + secs
		return []any{event("seek"), success(nil), event("playback-restart")}

	case "screenshot", "screenshot-to-file":
		return []any{success(nil)}

	default:
		return []any{failure("error running command")}
	}
}

func (p *Player) changed(prop string) []any {
	var out []any
	for id, name := range p.observers {
		if name == prop {
			out = append(out, p.propertyChange(id, prop))
		}
	}
	return out
}

func (p *Player) propertyChange(id uint32, prop string) map[string]any {
	m := map[string]any{"event": "property-change", "id": id, "name": prop}
	if v, ok := p.props[prop]; ok {
		m["data"] = v
	}
	return m
}

func argString(args []any, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func argUint(args []any, i int) (uint32, bool) {
	if i >= len(args) {
		return 0, false
	}
	f, ok := args[i].(float64)
	return uint32(f), ok
}
