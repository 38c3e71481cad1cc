package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/internal/monitoring"
	"github.com/tr1v3r/mpvsock/link"
)

// docs: https://mpv.io/manual/stable/#json-ipc

const sockPathPrefix = "/tmp/mpvsock_mpv-ipc-sock_"

var ErrNotPlaying = errors.New("mpv player is not running")

// Opener establishes the link a player session runs over.
type Opener func(ctx context.Context) (*link.Link, error)

// SpawnServer starts mpv listening on a fresh socket under /tmp.
func SpawnServer(cfg link.SpawnConfig) Opener {
	return func(ctx context.Context) (*link.Link, error) {
		return link.SpawnServer(ctx, sockPathPrefix+uuid.NewString(), cfg)
	}
}

// SpawnClient starts mpv on an anonymous socket pair.
func SpawnClient(cfg link.SpawnConfig) Opener {
	return func(context.Context) (*link.Link, error) { return link.SpawnClient(cfg) }
}

// Connect attaches to an mpv already listening on socketPath.
func Connect(socketPath string) Opener {
	return func(context.Context) (*link.Link, error) { return link.Connect(socketPath) }
}

func NewMPVPlayer(open Opener, fullscreen bool) *MPVPlayer {
	return &MPVPlayer{open: open, fullscreen: fullscreen}
}

// MPVPlayer drives one mpv session at a time. The session starts with Play
// and ends with Stop or Close.
type MPVPlayer struct {
	mu         sync.Mutex
	open       Opener
	fullscreen bool

	link *link.Link
}

func (p *MPVPlayer) Play(ctx context.Context, uri string, volume int) error {
	log.CtxDebug(ctx, "MPVPlayer Play: uri=%s volume=%d", uri, volume)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.link == nil {
		l, err := p.open(ctx)
		if err != nil {
			monitoring.GetMetrics().RecordPlayerError()
			return fmt.Errorf("failed to start mpv: %w", err)
		}
		p.link = l
		monitoring.GetMetrics().RecordPlayerSession()
	}

	if _, err := run(ctx, p, "set volume", command.Set(command.Volume, float64(volume))); err != nil {
		return err
	}
	info, err := run(ctx, p, "loadfile", command.Load(uri))
	if err != nil {
		return err
	}
	log.CtxDebug(ctx, "mpv loaded %s as playlist entry %d", uri, info.PlaylistEntryID)

	if p.fullscreen {
		if _, err := run(ctx, p, "set fullscreen", command.Set(command.Fullscreen, true)); err != nil {
			return err
		}
	}
	_, err = run(ctx, p, "resume", command.Set(command.Pause, false))
	return err
}

func (p *MPVPlayer) Pause(ctx context.Context) error {
	return p.set(ctx, "pause", command.Set(command.Pause, true))
}

func (p *MPVPlayer) Resume(ctx context.Context) error {
	return p.set(ctx, "resume", command.Set(command.Pause, false))
}

// Stop halts playback and ends the session.
func (p *MPVPlayer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.link == nil {
		return nil
	}

	var stopErr error
	if _, err := run(ctx, p, "stop", command.Stop{}); err != nil {
		stopErr = err
	}
	if err := p.closeLink(ctx); err != nil {
		if stopErr != nil {
			return fmt.Errorf("multiple errors: %w, closing link: %v", stopErr, err)
		}
		return err
	}
	return stopErr
}

func (p *MPVPlayer) SetVolume(ctx context.Context, v int) error {
	return p.set(ctx, "set volume", command.Set(command.Volume, float64(v)))
}

func (p *MPVPlayer) SetMute(ctx context.Context, m bool) error {
	return p.set(ctx, "set mute", command.Set(command.Mute, m))
}

func (p *MPVPlayer) SetFullscreen(ctx context.Context, f bool) error {
	return p.set(ctx, "set fullscreen", command.Set(command.Fullscreen, f))
}

func (p *MPVPlayer) SetTitle(ctx context.Context, title string) error {
	return p.set(ctx, "set title", command.Set(command.Title, title))
}

func (p *MPVPlayer) Screenshot(ctx context.Context, path string) error {
	return p.set(ctx, "screenshot", command.Screenshot{File: path})
}

func (p *MPVPlayer) SetSpeed(ctx context.Context, speed float64) error {
	return p.set(ctx, "set speed", command.Set(command.Speed, speed))
}

func (p *MPVPlayer) Seek(ctx context.Context, seconds float64) error {
	return p.set(ctx, "seek", command.Seek{Seconds: seconds, Flags: "absolute"})
}

func (p *MPVPlayer) GetPosition(ctx context.Context) (float64, error) {
	return get(ctx, p, command.TimePos)
}

func (p *MPVPlayer) GetDuration(ctx context.Context) (float64, error) {
	return get(ctx, p, command.Duration)
}

// Close ends the session without stopping playback first.
func (p *MPVPlayer) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closeLink(ctx)
}

func (p *MPVPlayer) closeLink(ctx context.Context) error {
	if p.link == nil {
		return nil
	}
	l := p.link
	p.link = nil

	if err := l.Close(); err != nil {
		monitoring.GetMetrics().RecordPlayerError()
		return fmt.Errorf("closing mpv link fail: %w", err)
	}
	log.CtxDebug(ctx, "mpv session closed")
	return nil
}

func (p *MPVPlayer) set(ctx context.Context, name string, cmd command.Command[command.Empty]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := run(ctx, p, name, cmd)
	return err
}

func get[T any](ctx context.Context, p *MPVPlayer, prop command.Property[T]) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return run(ctx, p, "get "+prop.Name(), command.Get(prop))
}

// run executes cmd on the session link. p.mu must be held.
func run[T any](ctx context.Context, p *MPVPlayer, name string, cmd command.Command[T]) (T, error) {
	var zero T
	if p.link == nil {
		return zero, fmt.Errorf("calling mpv %s failed: %w", name, ErrNotPlaying)
	}

	data, err := link.Run(p.link, cmd)
	// nothing consumes events here; keep the queue from growing
	for _, event := range p.link.DrainEvents() {
		log.CtxDebug(ctx, "mpv event: %v", event)
	}
	if err != nil {
		monitoring.GetMetrics().RecordPlayerError()
		return zero, fmt.Errorf("calling mpv %s failed: %w", name, err)
	}
	return data, nil
}
