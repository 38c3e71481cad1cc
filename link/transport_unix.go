//go:build unix

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/tr1v3r/pkg/log"
	"golang.org/x/sys/unix"
)

// DefaultBinary is the player started by the spawn modes.
const DefaultBinary = "mpv"

// NoTimeout makes WaitRead block until the socket is readable.
const NoTimeout time.Duration = -1

var quitCommand = []byte("quit\n")

// SpawnConfig controls how the player process is started.
type SpawnConfig struct {
	// Binary defaults to DefaultBinary.
	Binary string
	// Args are passed before the IPC option.
	Args []string
}

func (c SpawnConfig) command(ipcArg string) *exec.Cmd {
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	args := append([]string{"--idle", "--no-terminal"}, c.Args...)
	args = append(args, ipcArg)

	// nil Stdin/Stdout/Stderr are connected to the null device
	return exec.Command(binary, args...)
}

type transportState uint8

const (
	// stateClosed is terminal: only Close may be called.
	stateClosed transportState = iota
	// stateSocket: the player is a separate process.
	stateSocket
	// stateChild: the player is a child of this process.
	stateChild
)

// Transport owns the socket connected to mpv and, for the spawn modes, the
// mpv child process. It is released exactly once by Close; a Transport that
// becomes unreachable without being closed is closed by a finalizer, which
// panics if teardown fails.
//
// Every method except Close and IsClosed panics once the transport is closed.
type Transport struct {
	state transportState
	fd    int
	cmd   *exec.Cmd
}

func newTransport(state transportState, fd int, cmd *exec.Cmd) *Transport {
	t := &Transport{state: state, fd: fd, cmd: cmd}
	runtime.SetFinalizer(t, (*Transport).finalize)
	return t
}

// ConnectTransport connects to a player already listening on path, e.g. one
// started with --input-ipc-server.
func ConnectTransport(path string) (*Transport, error) {
	fd, err := dialUnix(path)
	if err != nil {
		return nil, &InitError{Op: OpConnect, Err: err}
	}
	return newTransport(stateSocket, fd, nil), nil
}

// SpawnServerTransport starts a player that creates and listens on a socket
// at path, then connects to it. A stale socket left at path is removed first.
// ctx bounds the wait for the player to create the socket.
func SpawnServerTransport(ctx context.Context, path string, cfg SpawnConfig) (*Transport, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSocket != 0 {
		log.CtxInfo(ctx, "removing existing socket at %s", path)
		if err := os.Remove(path); err != nil {
			return nil, &InitError{Op: OpRemovePrevious, Err: err}
		}
	}

	cmd := cfg.command("--input-ipc-server=" + path)
	if err := cmd.Start(); err != nil {
		return nil, &InitError{Op: OpSpawn, Err: err}
	}
	log.CtxInfo(ctx, "spawned mpv with pid: %d", cmd.Process.Pid)

	// the player creates the socket some time after it starts
	for {
		fd, err := dialUnix(path)
		if err == nil {
			return newTransport(stateChild, fd, cmd), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			killChild(cmd)
			return nil, &InitError{Op: OpConnect, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			killChild(cmd)
			return nil, &InitError{Op: OpConnect, Err: fmt.Errorf("waiting for %s: %w", path, ctxErr)}
		}
		runtime.Gosched()
	}
}

// SpawnClientTransport creates a socket pair and starts a player that talks
// over the inherited end, passed as --input-ipc-client=fd://3.
func SpawnClientTransport(cfg SpawnConfig) (*Transport, error) {
	// hold ForkLock so no concurrent exec inherits the pair before it is
	// marked close-on-exec
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, &InitError{Op: OpSocketPair, Err: os.NewSyscallError("socketpair", err)}
	}

	// ExtraFiles[0] becomes fd 3 in the child with close-on-exec cleared
	mpvSocket := os.NewFile(uintptr(fds[1]), "mpv-ipc-client")
	cmd := cfg.command("--input-ipc-client=fd://3")
	cmd.ExtraFiles = []*os.File{mpvSocket}
	err = cmd.Start()
	_ = mpvSocket.Close()
	if err != nil {
		_ = unix.Close(fds[0])
		return nil, &InitError{Op: OpSpawn, Err: err}
	}
	log.Info("spawned mpv with pid: %d", cmd.Process.Pid)

	return newTransport(stateChild, fds[0], cmd), nil
}

// dialUnix connects to path and returns a descriptor this package owns.
func dialUnix(path string) (int, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	fd := -1
	var dupErr error
	ctrlErr := raw.Control(func(s uintptr) {
		syscall.ForkLock.RLock()
		defer syscall.ForkLock.RUnlock()
		if fd, dupErr = unix.Dup(int(s)); dupErr == nil {
			unix.CloseOnExec(fd)
		}
	})
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	if dupErr != nil {
		return -1, os.NewSyscallError("dup", dupErr)
	}
	return fd, nil
}

func killChild(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}

func (t *Transport) socket() int {
	if t.state == stateClosed {
		panic("mpv link closed")
	}
	return t.fd
}

// SetNonblocking switches the socket's blocking mode.
func (t *Transport) SetNonblocking(nonblocking bool) error {
	err := unix.SetNonblock(t.socket(), nonblocking)
	runtime.KeepAlive(t)
	return os.NewSyscallError("setnonblock", err)
}

// Read reads from the socket. In non-blocking mode an empty socket yields
// EAGAIN. A closed peer yields io.EOF.
func (t *Transport) Read(p []byte) (int, error) {
	fd := t.socket()
	defer runtime.KeepAlive(t)
	for {
		n, err := unix.Read(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

// Write writes all of p, waiting for buffer space if the socket is
// non-blocking and full.
func (t *Transport) Write(p []byte) (int, error) {
	fd := t.socket()
	defer runtime.KeepAlive(t)
	written := 0
	for written < len(p) {
		n, err := unix.Write(fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == nil, err == unix.EINTR:
		case err == unix.EAGAIN:
			if err := poll(fd, unix.POLLOUT, NoTimeout); err != nil {
				return written, err
			}
		default:
			return written, os.NewSyscallError("write", err)
		}
	}
	return written, nil
}

// WaitRead blocks until the socket is readable. A negative timeout waits
// forever; otherwise ErrTimeout is returned once it elapses. A hang-up is
// not an error since data may still be buffered.
func (t *Transport) WaitRead(timeout time.Duration) error {
	err := poll(t.socket(), unix.POLLIN, timeout)
	runtime.KeepAlive(t)
	return err
}

var (
	errPollInvalid = errors.New("poll: socket descriptor is invalid")
	errPollError   = errors.New("poll: error condition on socket")
)

func poll(fd int, events int16, timeout time.Duration) error {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ms := -1
		if timeout >= 0 {
			ms = int((time.Until(deadline) + time.Millisecond - 1) / time.Millisecond)
			ms = max(ms, 0)
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			return ErrTimeout
		}

		switch revents := fds[0].Revents; {
		case revents&unix.POLLNVAL != 0:
			return errPollInvalid
		case revents&unix.POLLERR != 0:
			return errPollError
		}
		return nil
	}
}

// IsClosed reports whether Close has been called.
func (t *Transport) IsClosed() bool { return t.state == stateClosed }

// Pid returns the child's process id, or 0 when the player is not a child.
func (t *Transport) Pid() int {
	t.socket()
	if t.state != stateChild {
		return 0
	}
	return t.cmd.Process.Pid
}

// Close shuts the socket down and, for a child player, asks it to quit and
// waits for it to exit. Calling Close again returns nil.
func (t *Transport) Close() error {
	state, fd, cmd := t.state, t.fd, t.cmd
	t.state, t.fd, t.cmd = stateClosed, -1, nil

	switch state {
	case stateSocket:
		runtime.SetFinalizer(t, nil)
		return closeSocket(fd)

	case stateChild:
		runtime.SetFinalizer(t, nil)

		// a nudge only: mpv also quits when the socket goes away
		_, err := unix.Write(fd, quitCommand)
		log.Info("wrote quit command: %v", errOrOK(err))

		if err := closeSocket(fd); err != nil {
			log.Info("ignoring socket teardown error: %v", err)
		}

		log.Info("waiting for mpv child to exit")
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return &DeinitError{Op: OpWait, Err: err}
			}
			log.Info("mpv child exited: %v", exitErr)
		}
		return nil

	default:
		return nil
	}
}

func (t *Transport) finalize() {
	if err := t.Close(); err != nil {
		panic(fmt.Sprintf("failed to deinit mpv link in finalizer: %v", err))
	}
}

func closeSocket(fd int) error {
	log.Info("shutting down and closing socket")
	defer unix.Close(fd)

	// ENOTCONN: the peer already tore the connection down
	if err := unix.Shutdown(fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return &DeinitError{Op: OpShutdown, Err: os.NewSyscallError("shutdown", err)}
	}
	return nil
}

func errOrOK(err error) any {
	if err != nil {
		return err
	}
	return "ok"
}
