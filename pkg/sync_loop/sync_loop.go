package sync_loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/calendar"
)

type OverlapPolicy string

const (
	// OverlapSkip drops a tick while the previous fetch is still running.
	OverlapSkip OverlapPolicy = "skip"
	// OverlapAllow lets ticks run concurrently; an older fetch never overwrites a newer delivery.
	OverlapAllow OverlapPolicy = "allow"
)

// Fetcher is the part of calendar.Remote the loop needs.
type Fetcher interface {
	FetchEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
}

type Options struct {
	Interval time.Duration
	// Schedule is an optional cron spec ("*/1 * * * *", "@every 30s") used instead of Interval.
	Schedule      string
	MonthsBack    int
	MonthsForward int
	Overlap       OverlapPolicy
	Clock         utils.Clock
	// OnError is called with every failed fetch.
	OnError func(error)
}

type Status struct {
	Running             bool      `json:"running"`
	LastSync            time.Time `json:"lastSync,omitzero"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Loop polls the remote calendar and hands every successful fetch to the
// update callback. It is either stopped or running; after Stop returns the
// callback is not called again.
type Loop struct {
	remote   Fetcher
	opts     Options
	schedule cron.Schedule

	mu       sync.Mutex
	running  bool
	cron     *cron.Cron
	cancel   context.CancelFunc
	onUpdate func([]calendar.Event)

	deliverMu     sync.Mutex
	seq           uint64
	lastDelivered uint64

	statusMu sync.Mutex
	status   Status
}

type constantDelay struct {
	delay time.Duration
}

func (s constantDelay) Next(t time.Time) time.Time {
	return t.Add(s.delay)
}

func New(remote Fetcher, opts Options) (*Loop, error) {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.Overlap != OverlapAllow {
		opts.Overlap = OverlapSkip
	}

	var schedule cron.Schedule = constantDelay{delay: opts.Interval}
	if opts.Schedule != "" {
		parsed, err := cron.ParseStandard(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", opts.Schedule, err)
		}
		schedule = parsed
	}

	return &Loop{
		remote:   remote,
		opts:     opts,
		schedule: schedule,
	}, nil
}

// Start fetches once right away, then keeps fetching on the schedule. It does nothing when already running.
// The first fetch runs outside the lock, so Stop can cancel it.
func (l *Loop) Start(onUpdate func([]calendar.Event)) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		log.Debug("Sync loop already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.running = true
	l.cancel = cancel
	l.deliverMu.Lock()
	l.onUpdate = onUpdate
	l.deliverMu.Unlock()
	l.setRunning(true)
	l.mu.Unlock()

	l.tick(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		log.Debug("Sync loop stopped during its first fetch")
		return
	}

	logger := cron.PrintfLogger(log.StandardLogger())
	chain := []cron.JobWrapper{cron.Recover(logger)}
	if l.opts.Overlap == OverlapSkip {
		chain = append(chain, cron.SkipIfStillRunning(logger))
	}
	l.cron = cron.New(cron.WithChain(chain...), cron.WithLogger(logger))
	l.cron.Schedule(l.schedule, cron.FuncJob(func() { l.tick(ctx) }))
	l.cron.Start()
	log.Infof("Sync loop started (overlap: %s)", l.opts.Overlap)
}

// Stop cancels in-flight fetches and waits for running ticks. Once it returns the
// update callback is not called again. It does nothing when stopped.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}

	l.cancel()
	if l.cron != nil {
		<-l.cron.Stop().Done()
		l.cron = nil
	}
	// waits out a delivery that passed its cancellation check
	l.deliverMu.Lock()
	l.onUpdate = nil
	l.deliverMu.Unlock()

	l.running = false
	l.setRunning(false)
	log.Info("Sync loop stopped")
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) Status() Status {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	return l.status
}

// SyncNow fetches the current window once, outside the schedule and without delivering it.
func (l *Loop) SyncNow(ctx context.Context) ([]calendar.Event, error) {
	from, to := l.window()
	return l.remote.FetchEvents(ctx, from, to)
}

func (l *Loop) window() (time.Time, time.Time) {
	now := l.opts.Clock.Now()
	return now.AddDate(0, -l.opts.MonthsBack, 0), now.AddDate(0, l.opts.MonthsForward, 0)
}

func (l *Loop) tick(ctx context.Context) {
	l.deliverMu.Lock()
	l.seq++
	seq := l.seq
	onUpdate := l.onUpdate
	l.deliverMu.Unlock()

	from, to := l.window()
	events, err := l.remote.FetchEvents(ctx, from, to)

	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()
	if ctx.Err() != nil {
		log.Debug("Sync tick cancelled")
		return
	}
	if err != nil {
		log.Errorf("Failed to load events: %v", err)
		l.recordFailure(err)
		if l.opts.OnError != nil {
			l.opts.OnError(err)
		}
		return
	}
	if seq < l.lastDelivered {
		log.Debugf("Discarding stale fetch %d, %d already delivered", seq, l.lastDelivered)
		return
	}
	l.lastDelivered = seq
	l.recordSuccess()
	if onUpdate != nil {
		onUpdate(events)
	}
}

func (l *Loop) setRunning(running bool) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	l.status.Running = running
}

func (l *Loop) recordFailure(err error) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	l.status.LastError = err.Error()
	l.status.ConsecutiveFailures++
}

func (l *Loop) recordSuccess() {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	l.status.LastSync = l.opts.Clock.Now()
	l.status.LastError = ""
	l.status.ConsecutiveFailures = 0
}
