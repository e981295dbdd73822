// Package safe_close coordinates the shutdown of long-running goroutines.
// Package safe_close 协调长时间运行 goroutine 的关闭
package safe_close

import (
	"sync"
)

// SafeClose lets independent workers attach themselves to a shared close
// signal and lets the owner wait until every attached worker is done.
type SafeClose struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	closeCh   chan struct{}
	closeOnce sync.Once
	err       error
}

// NewSafeClose creates a SafeClose instance.
func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeCh: make(chan struct{}),
	}
}

// Attach runs f in its own goroutine. f must call done() when it returns and
// must return promptly once closeSignal fires.
func (s *SafeClose) Attach(f func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	go f(s.wg.Done, s.closeCh)
}

// SendCloseSignal asks every attached worker to stop. The first non-nil err
// wins; later calls are no-ops.
func (s *SafeClose) SendCloseSignal(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closeCh)
	})
}

// ReceiveCloseSignal returns the channel closed by SendCloseSignal.
func (s *SafeClose) ReceiveCloseSignal() <-chan struct{} {
	return s.closeCh
}

// WaitClosed blocks until every attached worker called done, then returns the
// error passed to SendCloseSignal, if any.
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
