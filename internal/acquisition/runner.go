package acquisition

import (
	"context"
	"errors"
	"sync"
)

// ErrRunnerClosed is returned by Submit after Close.
var ErrRunnerClosed = errors.New("acquisition runner is closed")

// Result is what a single submission produced.
type Result struct {
	Outputs []Output
	State   State
}

type request struct {
	raw   string
	reply chan reply
}

type reply struct {
	result Result
	err    error
}

// Runner applies submissions to a session one at a time, in arrival order.
type Runner struct {
	session  *Session
	requests chan request
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewRunner starts the goroutine that owns s. Call Close to stop it.
func NewRunner(s *Session) *Runner {
	if s == nil {
		s = NewSession()
	}
	r := &Runner{
		session:  s,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case req := <-r.requests:
			outputs, err := r.session.Submit(req.raw)
			req.reply <- reply{result: Result{Outputs: outputs, State: r.session.State()}, err: err}
		case <-r.done:
			return
		}
	}
}

// Submit queues raw and waits until it has been applied. If ctx ends after the
// submission was accepted by the loop, the answer is still applied.
func (r *Runner) Submit(ctx context.Context, raw string) (Result, error) {
	req := request{raw: raw, reply: make(chan reply, 1)}

	select {
	case r.requests <- req:
	case <-r.done:
		return Result{}, ErrRunnerClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops the runner goroutine and waits for it to exit.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}
