package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
)

// StatusProber asks the switch for one line's current routing status.
type StatusProber interface {
	QueryStatus(ctx context.Context, addr domain.RoutingAddress) (domain.RoutingStatus, error)
}

// SessionSource reports which agents currently hold an open session.
type SessionSource interface {
	OpenAgentIDs(ctx context.Context) ([]string, error)
}

// AgentSource lists the directory records the poller samples.
type AgentSource interface {
	All(ctx context.Context) ([]domain.Agent, error)
}

// Poller samples every agent's routing status on a fixed cadence and
// publishes the results to the hub. Agents without an open session are
// published Offline without touching the switch; only logged-in agents
// cost a probe.
type Poller struct {
	hub      *Hub
	probe    StatusProber
	agents   AgentSource
	sessions SessionSource
	log      *logging.Logger

	interval     time.Duration
	probeTimeout time.Duration
	maxInFlight  int64

	inFlight atomic.Bool
	cycles   sync.WaitGroup
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewPoller wires a poller. maxInFlight bounds concurrent probes per cycle.
func NewPoller(hub *Hub, probe StatusProber, agents AgentSource, sessions SessionSource, interval, probeTimeout time.Duration, maxInFlight int, log *logging.Logger) *Poller {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Poller{
		hub:          hub,
		probe:        probe,
		agents:       agents,
		sessions:     sessions,
		log:          log,
		interval:     interval,
		probeTimeout: probeTimeout,
		maxInFlight:  int64(maxInFlight),
		now:          time.Now,
	}
}

// Start launches the polling loop. The first cycle runs immediately so the
// hub is populated before the first tick.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})

	go p.run(ctx)
}

// Stop cancels the loop and waits for any in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.cancel, p.stopped = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.stopped)
	defer p.cycles.Wait()

	p.log.Info().
		Dur("interval", p.interval).
		Int64("max_in_flight", p.maxInFlight).
		Msg("presence poller started")

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("presence poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts one cycle unless the previous one is still in flight, in
// which case this tick is skipped rather than queued. The cycle runs off
// the ticker goroutine so a slow cycle delays nothing and later ticks see
// it as in flight.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug().Msg("poll cycle still in flight, skipping tick")
		return
	}
	p.cycles.Add(1)
	go func() {
		defer p.cycles.Done()
		defer p.inFlight.Store(false)
		p.cycle(ctx)
	}()
}

func (p *Poller) cycle(ctx context.Context) {
	started := p.now()

	agents, err := p.agents.All(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("poll cycle aborted, directory unavailable")
		return
	}
	openIDs, err := p.sessions.OpenAgentIDs(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("poll cycle aborted, session store unavailable")
		return
	}
	open := make(map[string]struct{}, len(openIDs))
	for _, id := range openIDs {
		open[id] = struct{}{}
	}

	sem := semaphore.NewWeighted(p.maxInFlight)
	var wg sync.WaitGroup
	probed := 0
	for _, agent := range agents {
		if _, ok := open[agent.ID]; !ok {
			p.hub.Publish(domain.PresenceRecord{
				AgentID:   agent.ID,
				Status:    domain.StatusOffline,
				SampledAt: p.now(),
			})
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		probed++
		wg.Add(1)
		go func(agent domain.Agent) {
			defer wg.Done()
			defer sem.Release(1)
			p.probeOne(ctx, agent)
		}(agent)
	}
	wg.Wait()

	p.log.Debug().
		Int("agents", len(agents)).
		Int("probed", probed).
		Dur("elapsed", time.Since(started)).
		Msg("poll cycle complete")
}

// probeOne samples a single line. A failed probe publishes nothing, so the
// agent's previous record simply ages toward StatusUnknown.
func (p *Poller) probeOne(ctx context.Context, agent domain.Agent) {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	status, err := p.probe.QueryStatus(probeCtx, agent.Routing)
	if err != nil {
		p.log.Debug().
			Str("agent_id", agent.ID).
			Str("address", agent.Routing.String()).
			Err(err).
			Msg("status probe failed")
		return
	}
	p.hub.Publish(domain.PresenceRecord{
		AgentID:   agent.ID,
		Status:    status,
		SampledAt: p.now(),
	})
}
