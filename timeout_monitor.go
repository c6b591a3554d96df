package structstream

import (
	"context"
	"sync"
	"time"
)

// StreamTimeouts bounds a streaming session. Zero values disable the
// corresponding timeout.
type StreamTimeouts struct {
	// TTFB limits the wait for the first text fragment.
	TTFB time.Duration
	// Idle limits the gap between consecutive fragments.
	Idle time.Duration
	// Total limits the whole session.
	Total time.Duration
}

// HasAnyTimeout returns true if any timeout is configured.
func (t StreamTimeouts) HasAnyTimeout() bool {
	return t.TTFB > 0 || t.Idle > 0 || t.Total > 0
}

// streamTimeoutMonitor tracks TTFB, idle and total timeouts for one session.
// On expiry it records the timeout error and cancels the session context; the
// session loop observes the cancellation and surfaces the recorded error.
type streamTimeoutMonitor struct {
	timeouts StreamTimeouts
	activity chan struct{}
	first    chan struct{} // closed on first fragment
	done     chan struct{}
	cancel   context.CancelFunc
	ctx      context.Context

	timeoutErrMu sync.Mutex
	timeoutErr   error

	firstOnce sync.Once
}

func newStreamTimeoutMonitor(
	ctx context.Context,
	timeouts StreamTimeouts,
	done chan struct{},
	cancel context.CancelFunc,
) *streamTimeoutMonitor {
	return &streamTimeoutMonitor{
		ctx:      ctx,
		timeouts: timeouts,
		activity: make(chan struct{}, 1),
		first:    make(chan struct{}),
		done:     done,
		cancel:   cancel,
	}
}

// Start begins the monitoring goroutine. It returns immediately when no
// timeouts are configured.
func (m *streamTimeoutMonitor) Start() {
	if !m.timeouts.HasAnyTimeout() {
		return
	}
	go m.run()
}

func (m *streamTimeoutMonitor) run() {
	var ttfbTimer *time.Timer
	var ttfbC <-chan time.Time
	if m.timeouts.TTFB > 0 {
		ttfbTimer = time.NewTimer(m.timeouts.TTFB)
		ttfbC = ttfbTimer.C
	}

	var idleTimer *time.Timer
	var idleC <-chan time.Time
	if m.timeouts.Idle > 0 {
		idleTimer = time.NewTimer(m.timeouts.Idle)
		idleC = idleTimer.C
	}

	var totalTimer *time.Timer
	var totalC <-chan time.Time
	if m.timeouts.Total > 0 {
		totalTimer = time.NewTimer(m.timeouts.Total)
		totalC = totalTimer.C
	}

	firstCh := m.first

	defer func() {
		if ttfbTimer != nil {
			ttfbTimer.Stop()
		}
		if idleTimer != nil {
			idleTimer.Stop()
		}
		if totalTimer != nil {
			totalTimer.Stop()
		}
	}()

	for {
		select {
		case <-m.done:
			return
		case <-m.ctx.Done():
			return
		case <-firstCh:
			firstCh = nil
			if ttfbTimer != nil {
				ttfbTimer.Stop()
				ttfbC = nil
			}
		case <-m.activity:
			if idleTimer != nil {
				if !idleTimer.Stop() {
					select {
					case <-idleTimer.C:
					default:
					}
				}
				idleTimer.Reset(m.timeouts.Idle)
				idleC = idleTimer.C
			}
		case <-ttfbC:
			m.setTimeoutErr(StreamTimeoutError{Kind: StreamTimeoutTTFB, Timeout: m.timeouts.TTFB})
			m.cancel()
			return
		case <-idleC:
			m.setTimeoutErr(StreamTimeoutError{Kind: StreamTimeoutIdle, Timeout: m.timeouts.Idle})
			m.cancel()
			return
		case <-totalC:
			m.setTimeoutErr(StreamTimeoutError{Kind: StreamTimeoutTotal, Timeout: m.timeouts.Total})
			m.cancel()
			return
		}
	}
}

// SignalActivity resets the idle timer. Called on every received fragment.
func (m *streamTimeoutMonitor) SignalActivity() {
	select {
	case m.activity <- struct{}{}:
	default:
	}
}

// SignalFirstContent stops the TTFB timer. Safe to call multiple times.
func (m *streamTimeoutMonitor) SignalFirstContent() {
	m.firstOnce.Do(func() {
		close(m.first)
	})
}

func (m *streamTimeoutMonitor) setTimeoutErr(err error) {
	m.timeoutErrMu.Lock()
	defer m.timeoutErrMu.Unlock()
	if m.timeoutErr == nil {
		m.timeoutErr = err
	}
}

// GetTimeoutErr returns the timeout error if one occurred.
func (m *streamTimeoutMonitor) GetTimeoutErr() error {
	m.timeoutErrMu.Lock()
	defer m.timeoutErrMu.Unlock()
	return m.timeoutErr
}
