// Package runtime hosts many agents and drives their reasoning cycles on a
// bounded worker pool.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultInterval     = 100 * time.Millisecond
	defaultWorkers      = 4
	defaultCycleTimeout = 30 * time.Second
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentExists   = errors.New("agent already exists")
)

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	// Interval between two ticks of Start.
	Interval time.Duration
	// Workers bounds the agents cycling at the same time.
	Workers      int
	CycleTimeout time.Duration
	// MaxTicksPerSecond paces Run. Zero means unpaced.
	MaxTicksPerSecond float64
	Logger            *zap.Logger
}

// Runner owns a set of agents keyed by uuid. Every tick runs one cycle of
// every agent.
type Runner struct {
	opts    Options
	logger  *zap.Logger
	limiter *rate.Limiter

	mu     sync.RWMutex
	agents map[uuid.UUID]*agent.Agent
	order  []uuid.UUID

	ticks atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func New(opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = defaultCycleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.MaxTicksPerSecond > 0 {
		limit = rate.Limit(opts.MaxTicksPerSecond)
	}
	return &Runner{
		opts:    opts,
		logger:  opts.Logger,
		limiter: rate.NewLimiter(limit, 1),
		agents:  make(map[uuid.UUID]*agent.Agent),
		stopCh:  make(chan struct{}),
	}
}

// Spawn creates an agent from cfg under a fresh id.
func (r *Runner) Spawn(cfg agent.Configuration) (uuid.UUID, *agent.Agent, error) {
	id := uuid.New()
	a, err := r.SpawnID(id, cfg)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, a, nil
}

// SpawnID creates an agent from cfg under id. Persistent storage keys beliefs
// by agent id, so a stable id lets an agent find its beliefs again after a
// restart. The message/send action is added to the agent's action registry.
func (r *Runner) SpawnID(id uuid.UUID, cfg agent.Configuration) (*agent.Agent, error) {
	if _, ok := r.Agent(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, id)
	}
	if cfg.Actions == nil {
		reg, err := execution.NewRegistry(execution.Builtins()...)
		if err != nil {
			return nil, err
		}
		cfg.Actions = reg
	}
	if _, ok := cfg.Actions.Get(SendAction); !ok {
		if err := cfg.Actions.Register(r.sendAction()); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}

	a, err := agent.New(id.String(), cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.agents[id]; ok {
		r.mu.Unlock()
		a.Close()
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, id)
	}
	r.agents[id] = a
	r.order = append(r.order, id)
	n := len(r.agents)
	r.mu.Unlock()

	agentsGauge.Set(float64(n))
	r.logger.Info("agent spawned", zap.String("agent_id", id.String()))
	return a, nil
}

// Remove stops cycling the agent and detaches its beliefs.
func (r *Runner) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	a, ok := r.agents[id]
	if ok {
		delete(r.agents, id)
		r.order = slices.DeleteFunc(r.order, func(o uuid.UUID) bool { return o == id })
	}
	n := len(r.agents)
	r.mu.Unlock()
	if !ok {
		return false
	}
	a.Close()
	agentsGauge.Set(float64(n))
	r.logger.Info("agent removed", zap.String("agent_id", id.String()))
	return true
}

func (r *Runner) Agent(id uuid.UUID) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Agents returns the agents in spawn order.
func (r *Runner) Agents() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Inject queues a trigger for the agent's next cycle.
func (r *Runner) Inject(id uuid.UUID, typ trigger.Type, l *term.Literal) error {
	a, ok := r.Agent(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	a.Inject(typ, l)
	triggersInjected.WithLabelValues(typ.String()).Inc()
	return nil
}

// Tick runs one cycle of every agent. Failed cycles are logged; only the
// cancellation of ctx is returned.
func (r *Runner) Tick(ctx context.Context) error {
	agents := r.Agents()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, a := range agents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cctx, cancel := context.WithTimeout(gctx, r.opts.CycleTimeout)
			defer cancel()

			start := time.Now()
			err := a.Cycle(cctx)
			cycleDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				cyclesTotal.WithLabelValues("error").Inc()
				r.logger.Warn("agent cycle failed", zap.String("agent_id", a.ID()), zap.Error(err))
				return ctx.Err()
			}
			cyclesTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	err := g.Wait()
	r.ticks.Add(1)
	return err
}

// Run ticks n times, paced by MaxTicksPerSecond.
func (r *Runner) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := r.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start ticks every Interval in a background goroutine until Stop.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := time.NewTicker(r.opts.Interval)
			defer ticker.Stop()

			r.logger.Info("runner started",
				zap.Duration("interval", r.opts.Interval),
				zap.Int("workers", r.opts.Workers),
			)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				<-r.stopCh
				cancel()
			}()

			for {
				select {
				case <-ticker.C:
					if err := r.Tick(ctx); err != nil && ctx.Err() == nil {
						r.logger.Error("tick failed", zap.Error(err))
					}
				case <-r.stopCh:
					r.logger.Info("runner stopped", zap.Uint64("ticks", r.ticks.Load()))
					return
				}
			}
		}()
	})
}

// Stop ends the loop started by Start, waiting for the running tick.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// Close stops the runner and detaches every agent.
func (r *Runner) Close() {
	r.Stop()
	for _, a := range r.Agents() {
		a.Close()
	}
}

// Collector returns a prometheus collector over the runner's agents.
func (r *Runner) Collector() Collector {
	return Collector{runner: r}
}

// Stats summarises the runner.
type Stats struct {
	Agents  int    `json:"agents"`
	Ticks   uint64 `json:"ticks"`
	Cycles  uint64 `json:"cycles"`
	Pending int    `json:"pending_triggers"`
	Beliefs int    `json:"beliefs"`
}

func (r *Runner) Stats() Stats {
	s := Stats{Ticks: r.ticks.Load()}
	for _, a := range r.Agents() {
		s.Agents++
		s.Cycles += a.Cycles()
		s.Pending += a.Pending()
		s.Beliefs += a.Beliefs().Size()
	}
	return s
}
