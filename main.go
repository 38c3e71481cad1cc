package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tr1v3r/pkg/log"
	"github.com/urfave/cli/v3"

	"github.com/tr1v3r/mpvsock/command"
	"github.com/tr1v3r/mpvsock/internal/config"
	"github.com/tr1v3r/mpvsock/internal/interactive"
	"github.com/tr1v3r/mpvsock/internal/monitoring"
	"github.com/tr1v3r/mpvsock/internal/player"
	"github.com/tr1v3r/mpvsock/link"
)

const version = "0.1.0"

func main() {
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 优雅退出
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sig:
			log.Info("received %s, shutting down", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	a := new(app)
	if err := a.command().Run(ctx, os.Args); err != nil {
		log.Error("mpvsock: %v", err)
		log.Close()
		os.Exit(1)
	}
}

type app struct {
	cfg config.Config
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "mpvsock",
		Usage:   "talk to mpv over its JSON IPC socket",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "connect", Usage: "connect to an existing mpv socket", TakesFile: true},
			&cli.StringFlag{Name: "spawn-server", Usage: "spawn mpv listening on a socket at the given path", TakesFile: true},
			&cli.BoolFlag{Name: "spawn-client", Usage: "spawn mpv connected through an unnamed socket pair"},
			&cli.StringFlag{Name: "mpv", Usage: "mpv binary to spawn", Sources: cli.EnvVars("MPV_BINARY")},
			&cli.StringFlag{Name: "config", Usage: "TOML config file", Sources: cli.EnvVars("MPVSOCK_CONFIG"), TakesFile: true},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Before: a.before,
		After: func(ctx context.Context, _ *cli.Command) error {
			if a.cfg.Metrics {
				monitoring.GetMetrics().LogMetrics()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "interactive",
				Usage:  "open an interactive command prompt",
				Action: a.withLink(func(_ context.Context, _ *cli.Command, l *link.Link) error { return interactive.Run(l, os.Stdout) }),
			},
			{
				Name:   "version",
				Usage:  "print the mpv IPC API version",
				Action: a.withLink(runVersion),
			},
			{
				Name:      "get",
				Usage:     "print a property value",
				ArgsUsage: "<property>",
				Action:    a.withLink(runGet),
			},
			{
				Name:      "set",
				Usage:     "set a property to a JSON value",
				ArgsUsage: "<property> <value>",
				Action:    a.withLink(runSet),
			},
			{
				Name:      "events",
				Usage:     "print events as they arrive, observing the given properties",
				ArgsUsage: "[property...]",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Usage: "stop after this long, 0 waits until interrupted"},
				},
				Action: a.withLink(runEvents),
			},
			{
				Name:      "play",
				Usage:     "play a file or URL until interrupted",
				ArgsUsage: "<uri>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "volume", Value: 100, Usage: "initial volume"},
					&cli.BoolFlag{Name: "fullscreen", Usage: "play fullscreen", Sources: cli.EnvVars("MPVSOCK_FULLSCREEN")},
				},
				Action: a.play,
			},
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}

	var modes int
	if path := cmd.String("connect"); path != "" {
		cfg.Mode, cfg.SocketPath = config.ModeConnect, path
		modes++
	}
	if path := cmd.String("spawn-server"); path != "" {
		cfg.Mode, cfg.SocketPath = config.ModeSpawnServer, path
		modes++
	}
	if cmd.Bool("spawn-client") {
		cfg.Mode = config.ModeSpawnClient
		modes++
	}
	if modes > 1 {
		return ctx, errors.New("--connect, --spawn-server and --spawn-client are mutually exclusive")
	}
	if binary := cmd.String("mpv"); binary != "" {
		cfg.Binary = binary
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.CtxDebug(ctx, "config: %+v", cfg)

	a.cfg = cfg
	return ctx, nil
}

func (a *app) spawnConfig() link.SpawnConfig {
	return link.SpawnConfig{Binary: a.cfg.Binary, Args: a.cfg.ExtraArgs}
}

func (a *app) openLink(ctx context.Context) (*link.Link, error) {
	switch a.cfg.Mode {
	case config.ModeConnect:
		return link.Connect(a.cfg.SocketPath)
	case config.ModeSpawnServer:
		return link.SpawnServer(ctx, a.cfg.SocketPath, a.spawnConfig())
	default:
		return link.SpawnClient(a.spawnConfig())
	}
}

func (a *app) opener() player.Opener {
	switch a.cfg.Mode {
	case config.ModeConnect:
		return player.Connect(a.cfg.SocketPath)
	case config.ModeSpawnServer:
		return func(ctx context.Context) (*link.Link, error) {
			return link.SpawnServer(ctx, a.cfg.SocketPath, a.spawnConfig())
		}
	default:
		return player.SpawnClient(a.spawnConfig())
	}
}

// withLink opens the configured link for the duration of action.
func (a *app) withLink(action func(context.Context, *cli.Command, *link.Link) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		l, err := a.openLink(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := l.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return action(ctx, cmd, l)
	}
}

func runVersion(_ context.Context, _ *cli.Command, l *link.Link) error {
	v, err := link.Run(l, command.GetVersion{})
	if err != nil {
		return err
	}
	fmt.Printf("mpvsock %s, mpv IPC API %d.%d\n", version, v.Major, v.Minor)
	return nil
}

func runGet(_ context.Context, cmd *cli.Command, l *link.Link) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("get expects a property name")
	}
	data, err := link.Run(l, command.Get(command.Untyped(cmd.Args().First())))
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", data)
	return nil
}

func runSet(_ context.Context, cmd *cli.Command, l *link.Link) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("set expects a property name and a value")
	}
	name, value := cmd.Args().Get(0), cmd.Args().Get(1)

	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		// bare words are strings
		quoted, err := json.Marshal(value)
		if err != nil {
			return err
		}
		raw = quoted
	}
	_, err := link.Run(l, command.Set(command.Untyped(name), raw))
	return err
}

const eventWait = 500 * time.Millisecond

func runEvents(ctx context.Context, cmd *cli.Command, l *link.Link) error {
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for i, name := range cmd.Args().Slice() {
		if _, err := link.Run(l, command.Observe(uint32(i+1), command.Untyped(name))); err != nil {
			return fmt.Errorf("observing %s: %w", name, err)
		}
	}

	for ctx.Err() == nil {
		if _, err := l.WaitEvents(eventWait); err != nil {
			return err
		}
		for _, event := range l.DrainEvents() {
			fmt.Printf("%s\t%v\n", event.Kind(), event)
			if event.Kind() == command.EventShutdown {
				return nil
			}
		}
	}
	return nil
}

func (a *app) play(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("play expects a uri")
	}
	uri := cmd.Args().First()

	p := player.NewMPVPlayer(a.opener(), a.cfg.Fullscreen || cmd.Bool("fullscreen"))
	if err := p.Play(ctx, uri, int(cmd.Int("volume"))); err != nil {
		_ = p.Close(ctx)
		return err
	}
	log.CtxInfo(ctx, "playing %s", uri)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.CtxInfo(ctx, "stopping playback")
			// a spawned mpv shares the terminal and may have quit on the same signal
			if err := p.Stop(context.Background()); err != nil {
				log.Info("stop: %v", err)
			}
			return nil
		case <-ticker.C:
			pos, err := p.GetPosition(ctx)
			if err != nil {
				log.CtxDebug(ctx, "position unavailable: %v", err)
				continue
			}
			dur, _ := p.GetDuration(ctx)
			log.CtxInfo(ctx, "position %.1fs / %.1fs", pos, dur)
		}
	}
}
