package oracle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/sync/errgroup"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

type Service interface {
	// Start runs one full cycle synchronously, then keeps running cycles in the
	// background every interval, measured from the start of the previous cycle.
	Start(ctx context.Context) error

	// Close stops scheduling and waits for the in-flight cycle.
	Close()

	// Wait blocks until the background loop ended. It returns a non-nil error
	// only if the loop itself failed.
	Wait() error

	LastCycleStartedAt() time.Time
}

const (
	defaultUpdateInterval  = 60 * time.Second
	defaultPipelineTimeout = 2 * time.Minute
)

type Config struct {
	Assets []types.Asset

	// Interval between cycle starts.
	Interval time.Duration

	// PipelineTimeout bounds a single (network, asset) pipeline.
	PipelineTimeout time.Duration

	// MaxParallel limits concurrent pipelines within a cycle, 0 means no limit.
	MaxParallel int
}

type oracleSvc struct {
	registry *Registry
	executor Executor
	observer Observer
	cfg      Config

	mu       sync.Mutex
	started  bool
	closed   bool
	cancelFn context.CancelFunc
	doneC    chan struct{}
	loopErr  error

	// running is set while a cycle is in flight, ticks arriving meanwhile are skipped.
	running            atomic.Bool
	cycles             sync.WaitGroup
	lastCycleStartedAt atomic.Int64

	logger  log.Logger
	svcTags metrics.Tags
}

func NewService(registry *Registry, executor Executor, observer Observer, cfg Config) (Service, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, types.ErrNoUsableNetworks
	} else if executor == nil {
		return nil, errors.New("no update executor provided")
	} else if len(cfg.Assets) == 0 {
		return nil, errors.New("no assets configured")
	}

	if observer == nil {
		observer = NopObserver()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultUpdateInterval
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = defaultPipelineTimeout
	}

	svc := &oracleSvc{
		registry: registry,
		executor: executor,
		observer: observer,
		cfg:      cfg,
		doneC:    make(chan struct{}),

		logger: log.WithField("svc", "oracle"),
		svcTags: metrics.Tags{
			"svc": "superchain_oracle",
		},
	}

	return svc, nil
}

func (s *oracleSvc) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return errors.New("oracle service already started or closed")
	}
	s.started = true
	ctx, s.cancelFn = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.WithFields(log.Fields{
		"networks": len(s.registry.Networks()),
		"assets":   len(s.cfg.Assets),
		"interval": s.cfg.Interval.String(),
	}).Infoln("starting oracle update cycles")

	// created before the first cycle, so spacing is measured from cycle starts
	ticker := time.NewTicker(s.cfg.Interval)

	s.running.Store(true)
	if err := s.firstCycle(ctx); err != nil {
		ticker.Stop()
		s.cancelFn()
		close(s.doneC)
		return err
	}
	s.running.Store(false)

	go func() {
		defer close(s.doneC)
		defer ticker.Stop()

		err := s.loop(ctx, ticker.C)
		s.cycles.Wait()

		s.mu.Lock()
		if s.loopErr == nil {
			s.loopErr = err
		}
		s.mu.Unlock()
	}()

	return nil
}

func (s *oracleSvc) firstCycle(ctx context.Context) (err error) {
	defer s.panicRecover(&err)

	s.runCycle(ctx)
	return nil
}

func (s *oracleSvc) loop(ctx context.Context, tickC <-chan time.Time) (err error) {
	defer s.panicRecover(&err)

	for {
		select {
		case <-ctx.Done():
			s.logger.Infoln("context cancelled, stopping update cycles")
			return nil
		case <-tickC:
			s.tick(ctx)
		}
	}
}

func (s *oracleSvc) tick(ctx context.Context) {
	metrics.ReportFuncCall(s.svcTags)

	// a tick may still be pending after shutdown began
	if ctx.Err() != nil {
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		s.emit(Event{
			Kind: EventCycleSkipped,
		})
		return
	}

	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.running.Store(false)

		var err error
		func() {
			defer s.panicRecover(&err)
			s.runCycle(ctx)
		}()

		if err != nil {
			s.fail(err)
		}
	}()
}

// fail records a fatal loop error and stops scheduling.
func (s *oracleSvc) fail(err error) {
	s.mu.Lock()
	if s.loopErr == nil {
		s.loopErr = err
	}
	cancelFn := s.cancelFn
	s.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
}

// runCycle fans out one pipeline per (network, asset) and joins them all.
// Outcomes are returned in network order, then asset configuration order.
func (s *oracleSvc) runCycle(ctx context.Context) []types.UpdateOutcome {
	startedAt := time.Now()
	s.lastCycleStartedAt.Store(startedAt.UnixNano())

	cycleID := uuid.NewV4().String()
	ctx = withCycleID(ctx, cycleID)

	networks := s.registry.Networks()
	outcomes := make([]types.UpdateOutcome, len(networks)*len(s.cfg.Assets))

	s.emit(Event{
		Kind:    EventCycleStarted,
		CycleID: cycleID,
		Summary: &CycleSummary{
			Pairs: len(outcomes),
		},
	})

	var g errgroup.Group
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}

	idx := 0
	for _, network := range networks {
		binding, ok := s.registry.Get(network)
		if !ok {
			continue
		}

		for _, asset := range s.cfg.Assets {
			i := idx
			idx++

			g.Go(func() error {
				outcome := s.runPipeline(ctx, binding, asset)
				outcomes[i] = outcome

				s.emit(Event{
					Kind:    EventOutcome,
					CycleID: cycleID,
					Network: outcome.Network,
					Asset:   outcome.Asset,
					Outcome: &outcome,
				})

				return nil
			})
		}
	}

	_ = g.Wait()
	outcomes = outcomes[:idx]

	s.emit(Event{
		Kind:     EventCycleFinished,
		CycleID:  cycleID,
		Summary:  newCycleSummary(outcomes),
		Duration: time.Since(startedAt),
	})

	return outcomes
}

// runPipeline gives every pipeline its own deadline, so a hung confirmation only
// stalls its own pair. Every outcome carries the cycle ID.
func (s *oracleSvc) runPipeline(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
	outcome := s.execute(ctx, binding, asset)
	if outcome.CycleID == "" {
		outcome.CycleID = cycleIDFrom(ctx)
	}

	return outcome
}

func (s *oracleSvc) execute(ctx context.Context, binding *NetworkBinding, asset types.Asset) (outcome types.UpdateOutcome) {
	pipelineCtx, cancelFn := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancelFn()

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(log.Fields{
				"network": binding.Name.String(),
				"asset":   asset.String(),
			}).Errorln("update pipeline panicked:", r)
			s.logger.Debugln(string(debug.Stack()))

			outcome = types.UpdateOutcome{
				Network: binding.Name,
				Asset:   asset,
				Status:  types.StatusSubmissionFailed,
				Detail:  fmt.Sprintf("pipeline panicked: %v", r),
			}
		}
	}()

	return s.executor.Execute(pipelineCtx, binding, asset)
}

// emit hands the event to the observer. A panicking sink is logged and the event dropped.
func (s *oracleSvc) emit(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(log.Fields{
				"event":    string(ev.Kind),
				"cycle_id": ev.CycleID,
			}).Errorln("observer panicked:", r)
		}
	}()

	s.observer.Observe(ev)
}

func (s *oracleSvc) LastCycleStartedAt() time.Time {
	ts := s.lastCycleStartedAt.Load()
	if ts == 0 {
		return time.Time{}
	}

	return time.Unix(0, ts)
}

func (s *oracleSvc) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	<-s.doneC

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopErr
}

func (s *oracleSvc) Close() {
	s.mu.Lock()
	s.closed = true
	cancelFn := s.cancelFn
	s.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}

	_ = s.Wait()
}

func (s *oracleSvc) panicRecover(err *error) {
	if r := recover(); r != nil {
		*err = errors.Errorf("%v", r)

		if e, ok := r.(error); ok {
			s.logger.WithError(e).Errorln("service main loop panicked with an error")
			s.logger.Debugln(string(debug.Stack()))
		} else {
			s.logger.Errorln(r)
		}
	}
}
