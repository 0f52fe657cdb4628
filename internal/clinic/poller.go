package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/healthvoice-triage/internal/events"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

const defaultPollInterval = 5 * time.Second

// Refresher reloads a cached queue.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller keeps a controller's cache fresh on a fixed schedule and whenever
// an appointment event arrives.
type Poller struct {
	cron   *cron.Cron
	target Refresher
	logger *logging.Logger
}

// NewPoller schedules target.Refresh every interval. Call Start to run it.
func NewPoller(target Refresher, interval time.Duration, logger *logging.Logger) (*Poller, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &Poller{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target: target,
		logger: logger,
	}
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), p.refresh); err != nil {
		return nil, fmt.Errorf("clinic: schedule queue poll: %w", err)
	}
	return p, nil
}

// Start begins polling.
func (p *Poller) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Poller) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.target.Refresh(ctx); err != nil {
		p.logger.Warn("scheduled queue refresh failed", "error", err)
	}
}

// Watch refreshes on every envelope until envs closes or ctx is done.
func (p *Poller) Watch(ctx context.Context, envs <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envs:
			if !ok {
				return
			}
			p.logger.Debug("appointment event received", "event_type", env.EventType, "aggregate", env.Aggregate)
			if err := p.target.Refresh(ctx); err != nil {
				p.logger.Warn("event-driven queue refresh failed", "event_type", env.EventType, "error", err)
			}
		}
	}
}
