package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

func RealClock() Clock { return realClock{} }

type Func func(ctx context.Context)

type task struct {
	id       uint64
	timer    Timer
	interval time.Duration
	fn       Func
}

// Scheduler runs keyed tasks on a clock. A key owns at most one task; tasks
// only ever receive their key through the closure that created them, so
// callbacks must re-read whatever state they act on.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	logger *zap.Logger
	tasks  map[string]*task
	seq    uint64
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func New(clock Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		logger: logger,
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// After runs fn once after delay, replacing any task already held by key.
func (s *Scheduler) After(key string, delay time.Duration, fn Func) {
	s.schedule(key, delay, 0, fn)
}

// Every runs fn each interval until Cancel is called for key.
func (s *Scheduler) Every(key string, interval time.Duration, fn Func) {
	s.schedule(key, interval, interval, fn)
}

func (s *Scheduler) schedule(key string, delay, interval time.Duration, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if existing := s.tasks[key]; existing != nil {
		existing.timer.Stop()
	}
	s.seq++
	id := s.seq
	t := &task{id: id, interval: interval, fn: fn}
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(key, id) })
	s.tasks[key] = t
}

// Cancel stops the task held by key. It reports true only for the call that
// actually removed it.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[key]
	if t == nil {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

func (s *Scheduler) Scheduled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Scheduler) fire(key string, id uint64) {
	s.mu.Lock()
	t := s.tasks[key]
	if t == nil || t.id != id {
		s.mu.Unlock()
		return
	}
	if t.interval == 0 {
		delete(s.tasks, key)
	}
	fn := t.fn
	s.mu.Unlock()

	var catcher panics.Catcher
	catcher.Try(func() { fn(s.ctx) })
	if recovered := catcher.Recovered(); recovered != nil && s.logger != nil {
		s.logger.Error("scheduled task panicked", zap.String("task", key), zap.Error(recovered.AsError()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.tasks[key]
	if s.closed || current == nil || current.id != id || current.interval == 0 {
		return
	}
	current.timer = s.clock.AfterFunc(current.interval, func() { s.fire(key, id) })
}
