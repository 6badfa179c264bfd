// Package controller routes server commands to the state machine and reports
// its lifecycle back to the server.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/karaplayer/internal/domain"
	"go.uber.org/zap"
)

// Player is the state machine as seen by the controller
//
//go:generate mockgen -destination=mocks/player_mock.go -package=mocks github.com/genricoloni/karaplayer/internal/controller Player
type Player interface {
	// Submit queues a command without blocking
	Submit(cmd domain.Command)

	// Lifecycle returns committed transitions in order
	Lifecycle() <-chan domain.Lifecycle
}

// Controller owns the entry queue discipline
//
//go:generate mockgen -destination=mocks/domain_mock.go -package=mocks github.com/genricoloni/karaplayer/internal/domain Channel,Inhibitor
type Controller struct {
	logger    *zap.Logger
	player    Player
	channel   domain.Channel
	queue     *EntryQueue
	inhibitor domain.Inhibitor

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

func NewController(
	logger *zap.Logger,
	player Player,
	channel domain.Channel,
	queue *EntryQueue,
	inhibitor domain.Inhibitor,
) *Controller {
	return &Controller{
		logger:    logger,
		player:    player,
		channel:   channel,
		queue:     queue,
		inhibitor: inhibitor,
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the routing loop. It returns immediately.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("Controller starting...")

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go c.run(loopCtx)
	return nil
}

// Stop ends the routing loop and releases the screensaver
func (c *Controller) Stop(ctx context.Context) error {
	c.logger.Info("Controller stopping...")
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	select {
	case <-c.done:
	case <-ctx.Done():
		return fmt.Errorf("controller did not stop: %w", ctx.Err())
	}

	if err := c.inhibitor.Release(ctx); err != nil {
		c.logger.Warn("Failed to release screensaver", zap.Error(err))
	}
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	commands := c.channel.Commands()
	lifecycle := c.player.Lifecycle()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			c.handleCommand(cmd)
		case ev, ok := <-lifecycle:
			if !ok {
				lifecycle = nil
				continue
			}
			c.handleLifecycle(ctx, ev)
		}
	}
}

func (c *Controller) handleCommand(cmd domain.Command) {
	switch cmd.Kind {
	case domain.CommandPlay:
		if cmd.Entry == nil {
			c.logger.Warn("Play command without entry")
			return
		}
		if !c.queue.Offer(cmd.Entry) {
			c.logger.Warn("Entry already played, ignoring",
				zap.Int("entry", cmd.Entry.ID))
			return
		}
		c.logger.Info("Entry queued",
			zap.Int("entry", cmd.Entry.ID),
			zap.String("title", cmd.Entry.Song.Title))

	case domain.CommandStop:
		c.queue.ClearNext()

	case domain.CommandIdle:
		// the current entry is interrupted without a finished event
		c.queue.Clear()
	}

	c.player.Submit(cmd)
}

func (c *Controller) handleLifecycle(ctx context.Context, ev domain.Lifecycle) {
	c.logger.Debug("Lifecycle",
		zap.Stringer("kind", ev.Kind),
		zap.Float64("position", ev.Position))

	c.channel.Send(c.status(ev))

	switch ev.Kind {
	case domain.LifecycleStarted:
		if err := c.inhibitor.Inhibit(ctx); err != nil {
			c.logger.Warn("Failed to inhibit screensaver", zap.Error(err))
		}

	case domain.LifecycleFinished, domain.LifecycleCouldNotPlay:
		if ev.Entry != nil {
			c.queue.Done(ev.Entry.ID)
		}
		if c.queue.Empty() {
			c.channel.RequestEntry()
		}

	case domain.LifecycleIdle:
		if err := c.inhibitor.Release(ctx); err != nil {
			c.logger.Warn("Failed to release screensaver", zap.Error(err))
		}
	}
}

// status translates a committed transition into its server event
func (c *Controller) status(ev domain.Lifecycle) domain.StatusEvent {
	out := domain.StatusEvent{
		Message: ev.Message,
		Time:    c.now(),
	}
	if ev.Entry != nil {
		out.EntryID = ev.Entry.ID
	}

	switch ev.Kind {
	case domain.LifecycleTransitionStarted:
		out.Kind = domain.StatusTransitionStarted
	case domain.LifecycleStarted:
		out.Kind = domain.StatusStarted
	case domain.LifecyclePaused:
		out.Kind = domain.StatusPaused
		out.Timing = int(ev.Position)
	case domain.LifecycleResumed:
		out.Kind = domain.StatusResumed
		out.Timing = int(ev.Position)
	case domain.LifecycleFinished:
		out.Kind = domain.StatusFinished
	case domain.LifecycleError:
		out.Kind = domain.StatusError
	case domain.LifecycleCouldNotPlay:
		out.Kind = domain.StatusCouldNotPlay
	case domain.LifecycleUpdatedTiming:
		out.Kind = domain.StatusUpdatedTiming
		out.Timing = int(ev.Position)
	case domain.LifecycleIdle:
		out.Kind = domain.StatusIdle
	}
	return out
}
