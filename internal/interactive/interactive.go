// Package interactive implements a command prompt that sends each input line
// to mpv and prints the result.
package interactive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/link"
)

const prompt = "Input: "

// Mode decides how an input line becomes a command.
type Mode int

const (
	// ModeRaw pastes the line as the elements of the command array.
	ModeRaw Mode = iota
	// ModeString splits the line on spaces and quotes each word.
	ModeString
	// ModeKnown accepts only get_version, get_property and set_property.
	ModeKnown
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeString:
		return "string"
	case ModeKnown:
		return "known"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// LineReader is the input side of the prompt. *readline.Instance implements
// it.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

type Session struct {
	link *link.Link
	in   LineReader
	out  io.Writer
	mode Mode
}

// Run opens a line editor on the terminal and runs the prompt until #quit or
// end of input.
func Run(l *link.Link, out io.Writer) error {
	rl, err := readline.New(prompt)
	if err != nil {
		return fmt.Errorf("opening prompt: %w", err)
	}
	return NewSession(l, rl, out).Run()
}

func NewSession(l *link.Link, in LineReader, out io.Writer) *Session {
	return &Session{link: l, in: in, out: out, mode: ModeString}
}

// Run reads and executes lines until #quit or end of input. Command failures
// are printed; a closed channel also ends the session and is returned.
func (s *Session) Run() error {
	defer s.in.Close()

	s.writeHelp()
	for {
		line, err := s.in.ReadLine()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			quit, err := s.handleInputCommand(line)
			if err != nil || quit {
				return err
			}
			continue
		}

		result, err := s.execute(line)
		if err != nil {
			s.writeError(err)
			if errors.Is(err, link.ErrChannelClosed) {
				return err
			}
			continue
		}
		s.writeResult(result)
	}
}

func (s *Session) execute(line string) (any, error) {
	switch s.mode {
	case ModeRaw:
		return s.link.RunCommand(command.Raw(line))
	case ModeString:
		raw, err := StringCommand(line)
		if err != nil {
			return nil, err
		}
		return s.link.RunCommand(raw)
	default:
		return s.runKnown(line)
	}
}

// handleInputCommand runs a #command and reports whether the session should
// end. The link's event queue is cleared by #events. Only a closed channel is
// returned as an error.
func (s *Session) handleInputCommand(line string) (bool, error) {
	switch line {
	case "#events":
		events, err := s.link.PollEvents()
		if err != nil {
			s.writeError(err)
			if errors.Is(err, link.ErrChannelClosed) {
				return true, err
			}
			return false, nil
		}
		fmt.Fprintf(s.out, "Events (%d):\n", len(events))
		for _, event := range events {
			fmt.Fprintf(s.out, "\t%v\n", event)
		}
		s.link.ClearEvents()
	case "#mode raw":
		s.setMode(ModeRaw)
	case "#mode string":
		s.setMode(ModeString)
	case "#mode known":
		s.setMode(ModeKnown)
	case "#quit":
		return true, nil
	case "#help":
		s.writeHelp()
	default:
		fmt.Fprintln(s.out, "Error: Invalid input command")
	}
	return false, nil
}

func (s *Session) setMode(m Mode) {
	log.Debug("interactive mode: %s -> %s", s.mode, m)
	s.mode = m
	s.writeMode()
}

func (s *Session) writeHelp() {
	fmt.Fprintln(s.out, "Help:")
	fmt.Fprintln(s.out, "\tInput commands:\n\t\t#help\n\t\t#events\n\t\t#mode raw|string|known\n\t\t#quit")
	s.writeMode()
	fmt.Fprintln(s.out)
}

func (s *Session) writeMode() {
	switch s.mode {
	case ModeRaw:
		fmt.Fprintln(s.out, "\tRaw mode is on, input is directly pasted as JSON array elements")
	case ModeString:
		fmt.Fprintln(s.out, "\tString mode is on, input is split by spaces and elements are quoted (prefix element with @ to disable quoting)")
	case ModeKnown:
		fmt.Fprintln(s.out, "\tKnown mode is on, only known commands are accepted and their result is properly parsed")
		fmt.Fprintln(s.out, "\tKnown commands: get_version get_property set_property")
	}
}

func (s *Session) writeResult(result any) {
	if raw, ok := result.(json.RawMessage); ok {
		fmt.Fprintf(s.out, "Result: %s\n", raw)
		return
	}
	fmt.Fprintf(s.out, "Result: %+v\n", result)
}

func (s *Session) writeError(err error) { fmt.Fprintf(s.out, "Error: %v\n", err) }

// StringCommand turns space separated words into command text: each word is
// quoted, a word starting with @ is inserted as is without the @, and a word
// starting with @@ is quoted with one @ removed.
func StringCommand(line string) (command.Raw, error) {
	var b strings.Builder
	for i, word := range strings.Split(line, " ") {
		if i > 0 {
			b.WriteByte(',')
		}

		switch {
		case strings.HasPrefix(word, "@@"):
			word = word[1:]
		case strings.HasPrefix(word, "@"):
			b.WriteString(word[1:])
			continue
		}

		quoted, err := json.Marshal(word)
		if err != nil {
			return "", err
		}
		b.Write(quoted)
	}
	return command.Raw(b.String()), nil
}
