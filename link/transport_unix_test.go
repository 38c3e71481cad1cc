//go:build unix

package link

import (
	"context"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/internal/mpvtest"
)

func fakeConfig(t *testing.T) SpawnConfig {
	t.Setenv(mpvtest.EnvVar, "1")
	return SpawnConfig{Binary: mpvtest.Executable()}
}

func TestConnectMissingSocket(t *testing.T) {
	_, err := Connect(filepath.Join(socketDir(t), "absent.sock"))

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, OpConnect, initErr.Op)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWaitRead(t *testing.T) {
	path := filepath.Join(socketDir(t), "mpv.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	tr, err := ConnectTransport(path)
	require.NoError(t, err)
	defer tr.Close()
	require.NoError(t, tr.SetNonblocking(true))

	peer, err := ln.Accept()
	require.NoError(t, err)

	assert.ErrorIs(t, tr.WaitRead(20*time.Millisecond), ErrTimeout)
	assert.ErrorIs(t, tr.WaitRead(0), ErrTimeout)

	var buf [16]byte
	_, err = tr.Read(buf[:])
	assert.ErrorIs(t, err, unix.EAGAIN)

	_, err = peer.Write([]byte("hi\n"))
	require.NoError(t, err)
	require.NoError(t, tr.WaitRead(NoTimeout))
	n, err := tr.Read(buf[:])
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(buf[:n]))

	// a hang-up is readable, not an error
	require.NoError(t, peer.Close())
	require.NoError(t, tr.WaitRead(time.Second))
}

func TestTransportCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(socketDir(t), "mpv.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	tr, err := ConnectTransport(path)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Pid())

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, tr.IsClosed())
	assert.PanicsWithValue(t, "mpv link closed", func() { _ = tr.WaitRead(0) })
	assert.Panics(t, func() { _ = tr.SetNonblocking(true) })
	assert.Panics(t, func() { _, _ = tr.Write([]byte("x")) })
}

func TestSpawnServerRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(socketDir(t), "mpv.sock")

	// leave a socket file nobody listens on
	stale, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	stale.SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())
	fi, err := os.Lstat(path)
	require.NoError(t, err)
	require.NotZero(t, fi.Mode()&fs.ModeSocket)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	l, err := SpawnServer(ctx, path, fakeConfig(t))
	require.NoError(t, err)
	assert.NotZero(t, l.Transport().Pid())

	v, err := Run(l, command.GetVersion{})
	require.NoError(t, err)
	assert.Equal(t, command.Version{Major: 2, Minor: 1}, v)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestSpawnServerCannotRemoveStaleSocket(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := socketDir(t)
	path := filepath.Join(dir, "mpv.sock")

	stale, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	stale.SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err = SpawnServer(context.Background(), path, fakeConfig(t))

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, OpRemovePrevious, initErr.Op)
	assert.ErrorIs(t, err, fs.ErrPermission)
	_, err = os.Lstat(path)
	assert.NoError(t, err)
}

func TestSpawnServerSpawnFailure(t *testing.T) {
	path := filepath.Join(socketDir(t), "mpv.sock")
	_, err := SpawnServer(context.Background(), path, SpawnConfig{Binary: filepath.Join(socketDir(t), "no-mpv")})

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, OpSpawn, initErr.Op)
}

func TestSpawnServerGivesUpWithContext(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	path := filepath.Join(socketDir(t), "mpv.sock")

	// sh rejects mpv's options and never creates the socket
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := SpawnServer(ctx, path, SpawnConfig{Binary: "/bin/sh"})

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, OpConnect, initErr.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSpawnClient(t *testing.T) {
	l, err := SpawnClient(fakeConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })
	assert.NotZero(t, l.Transport().Pid())

	_, err = Run(l, command.Set(command.Volume, 30.0))
	require.NoError(t, err)
	v, err := Run(l, command.Get(command.Volume))
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = Run(l, command.Get(command.Untyped("nope")))
	assert.ErrorIs(t, err, &command.ResultError{Status: command.StatusPropertyNotFound})

	require.NoError(t, l.Close())
	assert.True(t, l.IsClosed())
}

func TestPollClosedDescriptor(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.Close(fds[1]))
	require.NoError(t, unix.Close(fds[0]))

	assert.ErrorIs(t, poll(fds[0], unix.POLLIN, 0), errPollInvalid)
}

// spawnUnreferenced starts a player and returns only its pid, leaving the
// link for the garbage collector.
func spawnUnreferenced(t *testing.T) int {
	l, err := SpawnClient(fakeConfig(t))
	require.NoError(t, err)
	_, err = Run(l, command.GetVersion{})
	require.NoError(t, err)
	return l.Transport().Pid()
}

func TestUnreachableLinkStopsPlayer(t *testing.T) {
	pid := spawnUnreferenced(t)
	require.NoError(t, unix.Kill(pid, 0))

	require.Eventually(t, func() bool {
		runtime.GC()
		return unix.Kill(pid, 0) == unix.ESRCH
	}, 10*time.Second, 50*time.Millisecond)
}
