package interactive

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ergochat/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/internal/mpvtest"
	"github.com/tr1v3r/mpvsock/link"
)

type scriptedInput struct {
	lines  []string
	closed bool
}

func (s *scriptedInput) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

func (s *scriptedInput) Close() error {
	s.closed = true
	return nil
}

func fakeLink(t *testing.T) (*link.Link, *mpvtest.Player) {
	t.Helper()
	dir, err := os.MkdirTemp("", "mpvsock")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "mpv.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	player := mpvtest.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = player.Serve(conn)
	}()

	l, err := link.Connect(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, l.Close())
		_ = ln.Close()
		<-done
	})
	return l, player
}

func run(t *testing.T, l *link.Link, lines ...string) string {
	var out bytes.Buffer
	in := &scriptedInput{lines: lines}
	require.NoError(t, NewSession(l, in, &out).Run())
	assert.True(t, in.closed)
	return out.String()
}

func TestStringCommand(t *testing.T) {
	for _, tc := range []struct {
		line string
		want command.Raw
	}{
		{`get_property volume`, `"get_property","volume"`},
		{`set_property volume @50`, `"set_property","volume",50`},
		{`set_property pause @true`, `"set_property","pause",true`},
		{`loadfile @@home.mp4`, `"loadfile","@home.mp4"`},
		{`show-text "quoted"`, `"show-text","\"quoted\""`},
		{`a  b`, `"a","","b"`},
	} {
		t.Run(tc.line, func(t *testing.T) {
			got, err := StringCommand(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSessionStringMode(t *testing.T) {
	l, player := fakeLink(t)

	out := run(t, l,
		"set_property volume @42",
		"get_property volume",
		"get_property nope",
		"^C",
		"",
	)

	assert.Contains(t, out, "String mode is on")
	assert.Contains(t, out, "Result: null\n")
	assert.Contains(t, out, "Result: 42\n")
	assert.Contains(t, out, `Error: mpv returned error "property not found"`)
	v, _ := player.Property("volume")
	assert.Equal(t, 42.0, v)
}

func TestSessionRawMode(t *testing.T) {
	l, _ := fakeLink(t)

	out := run(t, l,
		"#mode raw",
		`"get_property","duration"`,
		`"get_property",`,
	)

	assert.Contains(t, out, "Raw mode is on")
	assert.Contains(t, out, "Result: 120\n")
	// mpv answers unparsable input without a request_id
	assert.Contains(t, out, "Error: could not receive response: expected request_id")
}

func TestSessionKnownMode(t *testing.T) {
	l, player := fakeLink(t)

	out := run(t, l,
		"#mode known",
		"get_version",
		"set_property pause true",
		"get_property pause",
		"get_property aid",
		"get_property sid",
		`set_property title "movie night"`,
		"set_property volume loud",
		"get_property",
		"set_property volume",
		"seek 10",
	)

	assert.Contains(t, out, "Known commands: get_version get_property set_property")
	assert.Contains(t, out, "Result: {Major:2 Minor:1}\n")
	assert.Contains(t, out, "Result: true\n")
	assert.Contains(t, out, "Result: auto\n")
	assert.Contains(t, out, "Result: no\n")
	assert.Contains(t, out, "Error: parsing volume value")
	assert.Contains(t, out, "Error: get_property expects an argument")
	assert.Contains(t, out, "Error: set_property expects two arguments")
	assert.Contains(t, out, "Error: unrecognized command")

	pause, _ := player.Property("pause")
	assert.Equal(t, true, pause)
	title, _ := player.Property("title")
	assert.Equal(t, "movie night", title)
}

func TestSessionInputCommands(t *testing.T) {
	l, _ := fakeLink(t)

	out := run(t, l,
		"#mode raw",
		`"observe_property",1,"volume"`,
		"#events",
		"#events",
		"#bogus",
		"#help",
		"#quit",
		"get_version",
	)

	assert.Contains(t, out, "Events (1):\n\tPropertyChange")
	assert.Contains(t, out, "Events (0):\n")
	assert.Contains(t, out, "Error: Invalid input command")
	assert.Equal(t, 2, strings.Count(out, "Help:"))
	assert.NotContains(t, out, "Major")
	assert.Empty(t, l.Events())
}

func TestSessionEventsOnClosedChannel(t *testing.T) {
	dir, err := os.MkdirTemp("", "mpvsock")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "mpv.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		if conn, err := ln.Accept(); err == nil {
			_ = conn.Close()
		}
	}()

	l, err := link.Connect(path)
	require.NoError(t, err)
	defer l.Close()
	<-accepted

	var out bytes.Buffer
	in := &scriptedInput{lines: []string{"#events", "get_version"}}
	err = NewSession(l, in, &out).Run()

	assert.ErrorIs(t, err, link.ErrChannelClosed)
	assert.True(t, in.closed)
	assert.Contains(t, out.String(), "Error: could not receive response: mpv closed the channel")
	assert.Equal(t, []string{"get_version"}, in.lines)
}
