package examaccess

import (
	"sync"
	"time"
)

// TimerState: состояние таймера экзамена
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerFired
	TimerStopped
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerFired:
		return "fired"
	case TimerStopped:
		return "stopped"
	}
	return "unknown"
}

type timerMode int

const (
	modeDuration timerMode = iota
	modeDeadline
)

// Timer counts an exam down either from a fixed duration or towards an
// absolute end time.
//
// Transitions: Idle -> Running on Sync(started, !completed); Running -> Idle
// when started turns false; Running -> Fired when the remaining time reaches
// zero; any state -> Stopped on Stop or Sync(_, true). Fired and Stopped are
// terminal. onTimeUp is invoked at most once.
type Timer struct {
	mu        sync.Mutex
	state     TimerState
	mode      timerMode
	remaining time.Duration
	endTime   time.Time
	tick      time.Duration
	now       func() time.Time
	stopCh    chan struct{}

	onTimeUp func()
	onTick   func(remainingSeconds int)
}

// NewDurationTimer создает таймер, уменьшающий счетчик на tick при каждом шаге
func NewDurationTimer(seconds int, tick time.Duration, onTimeUp func()) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	return newTimer(modeDuration, tick, onTimeUp, func(t *Timer) {
		t.remaining = time.Duration(seconds) * time.Second
	})
}

// NewDeadlineTimer создает таймер, пересчитывающий остаток до endTime на каждом шаге
func NewDeadlineTimer(endTime time.Time, tick time.Duration, onTimeUp func()) *Timer {
	return newTimer(modeDeadline, tick, onTimeUp, func(t *Timer) {
		t.endTime = endTime
		t.remaining = t.untilEnd()
	})
}

func newTimer(mode timerMode, tick time.Duration, onTimeUp func(), init func(*Timer)) *Timer {
	if tick <= 0 {
		tick = time.Second
	}
	t := &Timer{
		state:    TimerIdle,
		mode:     mode,
		tick:     tick,
		now:      time.Now,
		onTimeUp: onTimeUp,
	}
	init(t)
	return t
}

// OnTick registers a callback invoked after every evaluated tick with the
// remaining seconds. Must be set before the timer starts.
func (t *Timer) OnTick(fn func(remainingSeconds int)) {
	t.mu.Lock()
	t.onTick = fn
	t.mu.Unlock()
}

// SetClock replaces the time source of a deadline timer.
func (t *Timer) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	if t.mode == modeDeadline {
		t.remaining = t.untilEnd()
	}
	t.mu.Unlock()
}

func (t *Timer) untilEnd() time.Duration {
	d := t.endTime.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

// Sync drives the timer from the two exam flags. The timer only ticks while
// started is true and completed is false.
func (t *Timer) Sync(started, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TimerStopped || t.state == TimerFired {
		return
	}
	if completed {
		t.stopLocked()
		return
	}
	switch {
	case started && t.state == TimerIdle:
		t.state = TimerRunning
		t.stopCh = make(chan struct{})
		go t.run(t.stopCh, t.tick)
	case !started && t.state == TimerRunning:
		t.state = TimerIdle
		close(t.stopCh)
		t.stopCh = nil
	}
}

func (t *Timer) run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.Tick() {
				return
			}
		}
	}
}

// Tick evaluates one step of the countdown and reports whether the timer is
// still running afterwards. Ticks outside the Running state are ignored.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return false
	}

	switch t.mode {
	case modeDuration:
		t.remaining -= t.tick
		if t.remaining < 0 {
			t.remaining = 0
		}
	case modeDeadline:
		t.remaining = t.untilEnd()
	}

	seconds := secondsOf(t.remaining)
	onTick := t.onTick
	var onTimeUp func()
	if t.remaining == 0 {
		t.state = TimerFired
		onTimeUp = t.onTimeUp
	}
	running := t.state == TimerRunning
	t.mu.Unlock()

	if onTick != nil {
		onTick(seconds)
	}
	if onTimeUp != nil {
		onTimeUp()
	}
	return running
}

// Stop tears the timer down. Ticks evaluated after Stop are ignored, but Stop
// does not wait for a callback that an earlier tick has already started.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

func (t *Timer) stopLocked() {
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
	t.state = TimerStopped
}

// Remaining returns the remaining time in whole seconds, rounded up.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == modeDeadline && t.state != TimerStopped && t.state != TimerFired {
		t.remaining = t.untilEnd()
	}
	return secondsOf(t.remaining)
}

// State returns the current state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func secondsOf(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
