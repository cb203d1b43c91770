package app

import (
	"sync"
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/adapters/relay"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// commandKind identifies what a session dispatch command carries.
type commandKind int

const (
	cmdJoin commandKind = iota
	cmdAnswer
	cmdStart
	cmdExpire
	cmdContinue
	cmdEnd
)

// command is one unit of work for a session's dispatcher. Inbound wire events
// and host commands both travel through the same queue, which is what
// serializes all mutation of a session.
type command struct {
	kind          commandKind
	event         *relay.Event // join/answer payload carrier
	questionIndex int          // cmdExpire: the question the countdown was armed for
	enqueuedAt    time.Time
	reply         chan error // non-nil for host commands awaiting an outcome
}

// commandQueue is a bounded queue feeding one session's dispatcher.
// Enqueue never blocks: relay read loops must not stall behind a busy
// session, so an overflowing queue drops the command instead.
type commandQueue struct {
	commands chan command

	mu     sync.Mutex
	closed bool
}

func newCommandQueue(capacity int) *commandQueue {
	return &commandQueue{
		commands: make(chan command, capacity),
	}
}

// tryEnqueue adds a command without blocking. Returns false when the queue
// is full or closed.
func (q *commandQueue) tryEnqueue(cmd command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	cmd.enqueuedAt = time.Now()
	select {
	case q.commands <- cmd:
		return true
	default:
		metrics.RecordDispatchDrop()
		return false
	}
}

// dequeue exposes the consumer side.
func (q *commandQueue) dequeue() <-chan command {
	return q.commands
}

// close stops the queue. Idempotent; pending commands drain before the
// consumer sees the closed channel.
func (q *commandQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.commands)
}
