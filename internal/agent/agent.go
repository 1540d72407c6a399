package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Sender delivers one templated message to a recipient on the dating site.
// The delivery mechanism lives outside this package; the agent only drives
// cadence and reporting.
type Sender interface {
	Send(ctx context.Context, profileID, text string) (manID string, err error)
}

// Options control the agent's timer cadences.
type Options struct {
	HeartbeatEvery time.Duration
	PingEvery      time.Duration
	Version        string
}

func (o *Options) defaults() {
	if o.HeartbeatEvery <= 0 {
		o.HeartbeatEvery = 30 * time.Second
	}
	if o.PingEvery <= 0 {
		o.PingEvery = 60 * time.Second
	}
}

// Agent runs the timer-driven loops for one bot process: heartbeat polling,
// activity pings and the per-account mailing rotation. Control is pull-based:
// whatever commands the last heartbeat returned are what the loops obey until
// the next one.
type Agent struct {
	client *Client
	state  *State
	sender Sender
	opts   Options
	log    *logrus.Logger

	mu       sync.RWMutex
	commands map[string]Commands // per profile, last heartbeat's answer
}

func New(client *Client, state *State, sender Sender, opts Options, log *logrus.Logger) *Agent {
	opts.defaults()
	return &Agent{
		client:   client,
		state:    state,
		sender:   sender,
		opts:     opts,
		log:      log,
		commands: map[string]Commands{},
	}
}

// Run blocks until ctx is cancelled, driving one goroutine per loop.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.heartbeatLoop(gctx) })
	g.Go(func() error { return a.pingLoop(gctx) })
	g.Go(func() error { return a.mailingLoop(gctx) })

	err := g.Wait()
	if saveErr := a.state.Save(); saveErr != nil {
		a.log.WithError(saveErr).Warn("state save on shutdown failed")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Agent) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.HeartbeatEvery)
	defer ticker.Stop()

	a.heartbeatAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.heartbeatAll(ctx)
		}
	}
}

func (a *Agent) heartbeatAll(ctx context.Context) {
	accounts := a.state.Accounts
	if len(accounts) == 0 {
		// no accounts yet: still report liveness
		_, err := a.client.Heartbeat(ctx, &HeartbeatRequest{
			BotID:   a.state.BotID,
			Status:  "idle",
			Version: a.opts.Version,
		})
		if err != nil {
			a.log.WithError(err).Warn("heartbeat failed")
		}
		return
	}

	for profileID := range accounts {
		resp, err := a.client.Heartbeat(ctx, &HeartbeatRequest{
			BotID:            a.state.BotID,
			AccountDisplayID: profileID,
			Status:           "running",
			Version:          a.opts.Version,
			ProfilesTotal:    len(accounts),
		})
		if errors.Is(err, ErrPaymentRequired) {
			a.log.WithField("profile_id", profileID).Warn("payment required, mailing disabled")
			a.setCommands(profileID, Commands{})
			continue
		}
		if err != nil {
			a.log.WithError(err).WithField("profile_id", profileID).Warn("heartbeat failed")
			continue
		}
		a.setCommands(profileID, resp.Commands)
	}
}

func (a *Agent) setCommands(profileID string, cmd Commands) {
	a.mu.Lock()
	a.commands[profileID] = cmd
	a.mu.Unlock()
}

func (a *Agent) commandsFor(profileID string) Commands {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.commands[profileID]
}

func (a *Agent) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for profileID := range a.state.Accounts {
				if !a.commandsFor(profileID).BotEnabled {
					continue
				}
				if err := a.client.Ping(ctx, profileID); err != nil {
					a.log.WithError(err).WithField("profile_id", profileID).Debug("ping failed")
				}
			}
		}
	}
}

// mailingLoop checks each account once a second and fires a send when its own
// cadence elapsed. Accounts run on independent timers but share one goroutine.
func (a *Agent) mailingLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for profileID, acc := range a.state.Accounts {
				cmd := a.commandsFor(profileID)
				if !cmd.BotEnabled || !cmd.MailingEnabled {
					continue
				}
				if now.Sub(acc.LastMailing) < time.Duration(acc.MailingEvery)*time.Second {
					continue
				}
				a.sendOne(ctx, acc)
				acc.LastMailing = now
			}
		}
	}
}

func (a *Agent) sendOne(ctx context.Context, acc *AccountState) {
	text := acc.PopTemplate()
	if text == "" {
		return
	}

	report := &MessageSentRequest{
		ProfileID:    acc.ProfileID,
		Text:         text,
		Kind:         "letter",
		TemplateText: &text,
	}

	manID, err := a.sender.Send(ctx, acc.ProfileID, text)
	report.ManID = manID
	if err != nil {
		report.Error = &SendError{Code: "send_failed", Message: err.Error()}
		a.log.WithError(err).WithField("profile_id", acc.ProfileID).Warn("send failed")
	}

	if err := a.client.ReportMessage(ctx, report); err != nil {
		a.log.WithError(err).WithField("profile_id", acc.ProfileID).Warn("message report failed")
	}
}
