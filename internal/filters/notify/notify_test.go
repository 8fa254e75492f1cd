package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sieve/internal/filters/models"
)

const window = 50 * time.Millisecond

type captureNotifier struct {
	mu    sync.Mutex
	calls [][]models.FilterID
	err   error
	fired chan struct{}
}

func (n *captureNotifier) NotifyEngineUpdate(_ context.Context, ids []models.FilterID) error {
	n.mu.Lock()
	n.calls = append(n.calls, ids)
	n.mu.Unlock()
	if n.fired != nil {
		n.fired <- struct{}{}
	}
	return n.err
}

func (n *captureNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *captureNotifier) call(i int) []models.FilterID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[i]
}

type DebouncerSuite struct {
	suite.Suite
	notifier  *captureNotifier
	debouncer *Debouncer
	cancel    context.CancelFunc
	done      chan error
}

func (s *DebouncerSuite) SetupTest() {
	s.notifier = &captureNotifier{fired: make(chan struct{}, 8)}

	debouncer, err := New(s.notifier, window,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.debouncer = debouncer

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.debouncer.Run(ctx) }()
}

func (s *DebouncerSuite) TearDownTest() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("debouncer did not stop")
	}
}

func TestDebouncerSuite(t *testing.T) {
	suite.Run(t, new(DebouncerSuite))
}

func (s *DebouncerSuite) awaitFlush() {
	select {
	case <-s.notifier.fired:
	case <-time.After(5 * time.Second):
		s.FailNow("no notification arrived in time")
	}
}

// =============================================================================
// Coalescing Tests
// =============================================================================

func (s *DebouncerSuite) TestCoalescing() {
	s.Run("burst of signals collapses into one notification", func() {
		s.debouncer.Signal([]models.FilterID{2})
		s.debouncer.Signal([]models.FilterID{3, 2})
		s.debouncer.Signal([]models.FilterID{1001})
		s.debouncer.Signal([]models.FilterID{3})
		s.debouncer.Signal([]models.FilterID{5})

		s.awaitFlush()
		s.Equal([]models.FilterID{2, 3, 5, 1001}, s.notifier.call(0))

		time.Sleep(3 * window)
		s.Equal(1, s.notifier.callCount())
	})
}

func (s *DebouncerSuite) TestSeparateWindows() {
	s.Run("signals in separate quiet periods notify separately", func() {
		s.debouncer.Signal([]models.FilterID{1})
		s.awaitFlush()

		s.debouncer.Signal([]models.FilterID{2})
		s.awaitFlush()

		s.Require().Equal(2, s.notifier.callCount())
		s.Equal([]models.FilterID{1}, s.notifier.call(0))
		s.Equal([]models.FilterID{2}, s.notifier.call(1))
	})
}

func (s *DebouncerSuite) TestEmptySignal() {
	s.Run("an empty signal triggers nothing", func() {
		s.debouncer.Signal(nil)
		s.debouncer.Signal([]models.FilterID{})

		time.Sleep(3 * window)
		s.Equal(0, s.notifier.callCount())
	})
}

// =============================================================================
// Failure Tests
// =============================================================================

func (s *DebouncerSuite) TestNotifierFailure() {
	s.Run("a failed notification does not wedge the loop", func() {
		s.notifier.err = errors.New("broker unreachable")
		s.debouncer.Signal([]models.FilterID{2})
		s.awaitFlush()

		s.notifier.err = nil
		s.debouncer.Signal([]models.FilterID{3})
		s.awaitFlush()

		s.Equal(2, s.notifier.callCount())
	})
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func (s *DebouncerSuite) TestShutdownFlush() {
	s.Run("pending filters flush once on shutdown", func() {
		// Long window variant so the regular flush cannot fire first.
		notifier := &captureNotifier{fired: make(chan struct{}, 8)}
		debouncer, err := New(notifier, time.Hour,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- debouncer.Run(ctx) }()

		debouncer.Signal([]models.FilterID{7, 2})
		// Let the loop absorb the signal before pulling the plug.
		time.Sleep(100 * time.Millisecond)
		cancel()

		s.ErrorIs(<-done, context.Canceled)
		s.Require().Equal(1, notifier.callCount())
		s.Equal([]models.FilterID{2, 7}, notifier.call(0))
	})
}

// =============================================================================
// Construction Tests
// =============================================================================

func (s *DebouncerSuite) TestNewValidation() {
	s.Run("requires a notifier", func() {
		_, err := New(nil, window)
		s.ErrorContains(err, "notifier is required")
	})

	s.Run("rejects a non-positive window", func() {
		_, err := New(&captureNotifier{}, 0)
		s.ErrorContains(err, "debounce window must be positive")
	})
}
