package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/duvholt/bifrost/internal/errs"
)

// Sender writes one envelope to the gateway socket and reports a
// transport-level failure. Session implements this against its real
// WebSocket connection; tests substitute a fake.
type Sender interface {
	Send(ctx context.Context, topic, msgType string, payload json.RawMessage) error
}

// command is one outbound unit of work in a per-light FIFO queue.
type command struct {
	lightAddr string
	topic     string
	msgType   string
	payload   json.RawMessage
	result    chan error
}

// retryBackoff is the fixed schedule spec §4.3 mandates: three retries at
// 100ms, 400ms, 1.6s.
var retryBackoff = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

const commandDeadline = 3 * time.Second

// Queue serializes outbound commands per destination light: within one
// light's queue, commands issue strictly FIFO; across lights, no ordering
// is preserved (spec §4.3 "Ordering").
type Queue struct {
	sender  Sender
	limiter *rate.Limiter // shared across every light's lane, one per gateway

	mu     chan struct{} // 1-buffered mutex avoiding a sync.Mutex import here
	lanes  map[string]chan *command
	cancel map[string]context.CancelFunc
}

// NewQueue returns a Queue dispatching commands through sender, throttled
// to rps outbound commands per second across all of the gateway's lights.
func NewQueue(sender Sender, rps float64) *Queue {
	q := &Queue{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		mu:      make(chan struct{}, 1),
		lanes:   make(map[string]chan *command),
		cancel:  make(map[string]context.CancelFunc),
	}
	q.mu <- struct{}{}
	return q
}

func (q *Queue) lock()   { <-q.mu }
func (q *Queue) unlock() { q.mu <- struct{}{} }

// lane returns (creating if needed) the FIFO channel and worker for a
// given light address.
func (q *Queue) lane(addr string) chan *command {
	q.lock()
	defer q.unlock()

	if ch, ok := q.lanes[addr]; ok {
		return ch
	}
	ch := make(chan *command, 64)
	ctx, cancel := context.WithCancel(context.Background())
	q.lanes[addr] = ch
	q.cancel[addr] = cancel
	go q.run(ctx, addr, ch)
	return ch
}

func (q *Queue) run(ctx context.Context, addr string, ch chan *command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-ch:
			cmd.result <- q.dispatch(ctx, cmd)
		}
	}
}

func (q *Queue) dispatch(parent context.Context, cmd *command) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		ctx, cancel := context.WithTimeout(parent, commandDeadline)
		if err := q.limiter.Wait(ctx); err != nil {
			cancel()
			return errs.Wrap(errs.KindUnavailable, "command rate limit wait cancelled", err)
		}
		err := q.sender.Send(ctx, cmd.topic, cmd.msgType, cmd.payload)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < len(retryBackoff) {
			log.Warn().Err(err).Str("light", cmd.lightAddr).Int("attempt", attempt+1).
				Msg("upstream command failed, retrying")
			select {
			case <-time.After(retryBackoff[attempt]):
			case <-parent.Done():
				return errs.Wrap(errs.KindUnavailable, "command cancelled during retry", parent.Err())
			}
		}
	}
	return errs.Wrap(errs.KindUnavailable, "upstream command failed after retries", lastErr)
}

// Submit enqueues a command on the named light's lane and blocks until it
// either succeeds or exhausts its retries.
func (q *Queue) Submit(ctx context.Context, lightAddr, topic, msgType string, payload json.RawMessage) error {
	cmd := &command{
		lightAddr: lightAddr,
		topic:     topic,
		msgType:   msgType,
		payload:   payload,
		result:    make(chan error, 1),
	}
	lane := q.lane(lightAddr)
	select {
	case lane <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every lane's worker goroutine.
func (q *Queue) Close() {
	q.lock()
	defer q.unlock()
	for _, cancel := range q.cancel {
		cancel()
	}
}
