// Package circuitbreaker provides a three-state breaker for flaky upstreams.
// The AI backend sits behind one: when completions keep failing the breaker
// trips, callers get ErrOpen immediately and degrade instead of queueing on a
// dead upstream.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

type Config struct {
	// consecutive failures before tripping open
	FailureThreshold int
	// successes in half-open before closing again
	SuccessThreshold int
	// how long the breaker stays open before probing
	OpenTimeout time.Duration
	// concurrent probes allowed while half-open
	HalfOpenMaxCalls int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	openedAt      time.Time

	now func() time.Time
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Do runs fn under the breaker. While open it returns ErrOpen without calling
// fn; fn's own error is passed through and counted.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		// 超时后半开，放少量探测请求
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.successes = 0
	}

	if b.state == StateHalfOpen {
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !ok {
		b.failures++
		switch b.state {
		case StateHalfOpen:
			// 探测失败：立刻重新打开
			b.trip()
		case StateClosed:
			if b.failures >= b.cfg.FailureThreshold {
				b.trip()
			}
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.halfOpenCalls = 0
	b.successes = 0
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
}
