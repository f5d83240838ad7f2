// Package task runs the goroutines owned by datalinks and clients: receive
// loops and periodic timers.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-bacnet/logger"
)

var (
	// ErrStopped indicates that the manager was stopped and accepts no new tasks.
	ErrStopped = errors.New("task: manager stopped")

	// ErrInvalidInterval indicates a non-positive interval.
	ErrInvalidInterval = errors.New("task: invalid interval")

	// ErrDuplicateInterval indicates an interval task with the same name is already running.
	ErrDuplicateInterval = errors.New("task: interval task already exists")

	// ErrIntervalNotFound indicates that no interval task has the given name.
	ErrIntervalNotFound = errors.New("task: interval task not found")
)

const startTimeout = 5 * time.Second

// Func is a task body. It returns false to stop the task.
type Func func() bool

// CancelFunc is called once a task started with it terminates.
type CancelFunc func()

// Manager starts, stops and waits for a group of goroutines sharing one context.
//
//	mgr := task.NewManager(ctx, l)
//	_ = mgr.Start("receiver", func() bool { return readOne() }, nil)
//	_ = mgr.StartInterval("tick", func() bool { tsm.Tick(d); return true }, d, false)
//	mgr.Stop()
//	mgr.Wait()
//
// A stopped manager may be reused after Wait returns.
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a task manager whose tasks are canceled together with ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs taskFunc in a loop on a new goroutine until it returns false or
// the manager is stopped. cancelFunc, when not nil, runs after the loop exits.
func (mgr *Manager) Start(name string, taskFunc Func, cancelFunc CancelFunc) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}

	starter.run(func() {
		if cancelFunc != nil {
			defer cancelFunc()
		}
		mgr.loop(name, taskFunc)
	})

	return starter.waitForStart()
}

// StartInterval runs taskFunc every interval until it returns false, the
// interval is stopped, or the manager is stopped. If runNow is true taskFunc
// also runs once synchronously before the goroutine starts.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("%w: %s", ErrDuplicateInterval, name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.CompareAndDelete(name, ticker)
	}

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		cleanup()
		return nil
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		cleanup()
		return err
	}

	starter.run(func() {
		defer cleanup()

		ctx := mgr.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.isIntervalRunning(name, ticker) {
					return
				}
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	if err := starter.waitForStart(); err != nil {
		cleanup()
		return err
	}

	return nil
}

// StopInterval stops the interval task with the given name.
func (mgr *Manager) StopInterval(name string) error {
	val, ok := mgr.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntervalNotFound, name)
	}
	if ticker, ok := val.(*time.Ticker); ok {
		ticker.Stop()
	}

	return nil
}

// Stop signals every running task to terminate. It does not wait.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(key, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}
		mgr.tickers.Delete(key)

		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until all tasks terminated, then rearms the manager.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) isIntervalRunning(name string, ticker *time.Ticker) bool {
	val, ok := mgr.tickers.Load(name)
	return ok && val == ticker
}

func (mgr *Manager) loop(name string, taskFunc Func) {
	ctx := mgr.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(name, taskFunc) {
				return
			}
		}
	}
}

// callWithRecover runs fn and stops the task if it panics.
func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn()
}

type starter struct {
	mgr     *Manager
	name    string
	started chan struct{}
}

func (mgr *Manager) newStarter(name string) (*starter, error) {
	select {
	case <-mgr.Context().Done():
		return nil, fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	default:
	}

	return &starter{mgr: mgr, name: name, started: make(chan struct{})}, nil
}

func (s *starter) run(body func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)
	go func() {
		defer s.mgr.wg.Done()

		s.mgr.count.Add(1)
		close(s.started)

		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		body()
	}()
}

func (s *starter) waitForStart() error {
	select {
	case <-s.started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("task: timeout waiting for %s to start", s.name)
	}
}
