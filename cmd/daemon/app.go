package main

import (
	"context"
	"fmt"

	"github.com/genricoloni/karaplayer/internal/backend/mpv"
	"github.com/genricoloni/karaplayer/internal/backend/vlc"
	"github.com/genricoloni/karaplayer/internal/channel"
	"github.com/genricoloni/karaplayer/internal/config"
	"github.com/genricoloni/karaplayer/internal/controller"
	"github.com/genricoloni/karaplayer/internal/display"
	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/engine"
	"github.com/genricoloni/karaplayer/internal/logging"
	"github.com/genricoloni/karaplayer/internal/resource"
	"github.com/genricoloni/karaplayer/internal/resources"
	"github.com/genricoloni/karaplayer/internal/text"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// AppOptions is the whole dependency graph of the player
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		config.Load,
		newLogger,
		display.NewScreenResolution,
		newResolver,
		newBackgrounds,
		newRenderer,
		newBackend,
		controller.NewEntryQueue,
		newEngine,
		newChannel,
		display.NewScreenSaver,
		newController,
	),

	fx.Invoke(registerHooks),
)

// newLogger creates the zap logger described by the configuration
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger.Info("Configuration loaded", cfg.Fields()...)
	return logger, nil
}

func newResolver(logger *zap.Logger, cfg *config.Config) *resource.Resolver {
	return resource.NewResolver(logger, cfg.Player.ResourcesDir, resources.FS(), cfg.Player.RuntimeDir)
}

func newBackgrounds(logger *zap.Logger, cfg *config.Config, resolver *resource.Resolver, res *domain.ScreenResolution) *resource.BackgroundLoader {
	return resource.NewBackgroundLoader(logger, resolver, res, resource.BackgroundOptions{
		Transition: cfg.Player.Backgrounds.Transition,
		Idle:       cfg.Player.Backgrounds.Idle,
		Fit:        cfg.Player.FitBackgrounds,
	}, cfg.Player.RuntimeDir)
}

func newRenderer(logger *zap.Logger, cfg *config.Config, resolver *resource.Resolver, res *domain.ScreenResolution) (*text.Renderer, error) {
	return text.NewRenderer(logger, resolver, res, text.Options{
		Transition: cfg.Player.Templates.Transition,
		Idle:       cfg.Player.Templates.Idle,
		OutputDir:  cfg.Player.RuntimeDir,
	})
}

// newBackend builds the configured backend and applies its startup options
func newBackend(logger *zap.Logger, cfg *config.Config) (domain.Backend, error) {
	var (
		b    domain.Backend
		opts domain.StartupOptions
	)

	switch cfg.Player.Backend {
	case "mpv":
		b = mpv.NewBackend(logger, mpv.Options{
			Binary:     cfg.Player.Mpv.Binary,
			RuntimeDir: cfg.Player.RuntimeDir,
		})
		opts.MediaOptions = cfg.MpvMediaOptions()
	case "vlc":
		b = vlc.NewBackend(logger)
		opts.Args = cfg.Player.Vlc.InstanceParameters
		opts.MediaOptions = cfg.Player.Vlc.MediaParameters
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Player.Backend)
	}

	if err := b.ApplyStartupOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to apply %s options: %w", b.Name(), err)
	}
	if err := b.SetFullscreen(cfg.Player.Fullscreen); err != nil {
		return nil, fmt.Errorf("failed to set %s fullscreen: %w", b.Name(), err)
	}
	return b, nil
}

func newEngine(
	logger *zap.Logger,
	cfg *config.Config,
	b domain.Backend,
	renderer *text.Renderer,
	backgrounds *resource.BackgroundLoader,
	queue *controller.EntryQueue,
) *engine.Engine {
	return engine.NewEngine(logger, b, renderer, backgrounds, queue, engine.Options{
		KaraFolder:         cfg.Player.KaraFolder,
		TransitionDuration: cfg.Player.Durations.Transition,
		SeekStep:           cfg.Player.Durations.RewindFastForward,
		Notes:              []string{"karaplayer " + version},
	})
}

func newChannel(logger *zap.Logger, cfg *config.Config, queue *controller.EntryQueue) (*channel.Client, error) {
	url, err := channel.WebsocketURL(cfg.Server.Address, cfg.Server.WebsocketEndpoint)
	if err != nil {
		return nil, err
	}
	auth := channel.NewAuthenticator(logger, cfg.Server.Address,
		cfg.Server.Login, cfg.Server.Password, cfg.Server.Token)

	return channel.NewClient(logger, channel.NewDialer(), auth, channel.Options{
		URL:               url,
		ReconnectInterval: cfg.Server.ReconnectInterval,
		Ready:             queue.Empty,
	}), nil
}

func newController(
	logger *zap.Logger,
	eng *engine.Engine,
	client *channel.Client,
	queue *controller.EntryQueue,
	screensaver *display.ScreenSaver,
) *controller.Controller {
	return controller.NewController(logger, eng, client, queue, screensaver)
}

// registerHooks starts components in dependency order; fx stops them in
// reverse order
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	backgrounds *resource.BackgroundLoader,
	renderer *text.Renderer,
	b domain.Backend,
	eng *engine.Engine,
	client *channel.Client,
	ctrl *controller.Controller,
	screensaver *display.ScreenSaver,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Karaplayer starting", zap.String("version", version))
			if err := backgrounds.Load(); err != nil {
				return err
			}
			return renderer.Check()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return screensaver.Close(ctx)
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := b.Open(ctx); err != nil {
				return fmt.Errorf("failed to open %s: %w", b.Name(), err)
			}
			return nil
		},
		OnStop: b.Close,
	})

	lc.Append(fx.Hook{OnStart: eng.Start, OnStop: eng.Stop})
	lc.Append(fx.Hook{OnStart: client.Start, OnStop: client.Stop})
	lc.Append(fx.Hook{OnStart: ctrl.Start, OnStop: ctrl.Stop})
}
