package server

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"chat/internal/protocol"
)

// sendBufSize is the capacity of a peer's outbound queue. A peer that falls
// this far behind on reading its own socket stays connected — unlike the
// teacher's Hub, which disconnects it — but while its queue is full, further
// lines sent to it are discarded rather than blocking the sender (see send).
const sendBufSize = 256

// PeerCounters tracks how many times a single peer has issued each
// per-client command (§3, §4.F).
type PeerCounters struct {
	Say  uint64
	Kick uint64
	List uint64
}

// Peer is one server-side connection. It becomes a roster member only after
// completing authentication and name negotiation (Roster invariant R2);
// until then the session holds it without registering it anywhere shared.
type Peer struct {
	conn net.Conn
	in   *protocol.LineReader
	out  chan string   // outbound command lines, drained by one writer goroutine
	done chan struct{} // closed by close(); never p.out, so send() can never race a channel close

	active atomic.Bool

	mu       sync.Mutex
	name     string // set exactly once, never mutated after
	counters PeerCounters

	// kicked marks a peer that is being closed because of an explicit KICK
	// rather than its own disconnection; both paths still emit exactly one
	// LEAVE broadcast (§4.C CLOSED, P4).
	kicked atomic.Bool

	closeOnce sync.Once
}

func newPeer(conn net.Conn) *Peer {
	p := &Peer{
		conn: conn,
		in:   protocol.NewLineReader(conn),
		out:  make(chan string, sendBufSize),
		done: make(chan struct{}),
	}
	p.active.Store(true)
	go p.writeLoop()
	return p
}

// writeLoop serializes every write to this peer's connection so concurrent
// broadcasts can never interleave bytes on the same socket (P6). It mirrors
// the teacher's Client.writePump, draining a channel instead of holding a
// per-write mutex. It exits on done rather than on p.out closing, so close()
// never has to close a channel a concurrent send() might be blocked on.
func (p *Peer) writeLoop() {
	w := bufio.NewWriter(p.conn)
	for {
		select {
		case line := <-p.out:
			if err := protocol.WriteLine(w, line); err != nil {
				// The reader goroutine will observe the resulting EOF/error
				// and drive the peer's removal; a write failure here is
				// swallowed.
				continue
			}
		case <-p.done:
			return
		}
	}
}

// send enqueues line for delivery. It never blocks the caller (including a
// broadcaster holding the roster lock): a full outbound queue means this
// peer's own writer is stuck, which is exactly the condition its reader
// will notice as the connection dies. Racing a concurrent close() is safe
// because close() never closes p.out — only done, which send() also selects
// on — so this can never attempt to send on a closed channel.
func (p *Peer) send(line string) {
	if !p.active.Load() {
		return
	}
	select {
	case p.out <- line:
	case <-p.done:
	default:
	}
}

// getName returns the peer's negotiated display name, or "" before NAME_WAIT
// completes.
func (p *Peer) getName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// setName assigns the peer's name exactly once.
func (p *Peer) setName(name string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

func (p *Peer) incSay() {
	p.mu.Lock()
	p.counters.Say++
	p.mu.Unlock()
}

func (p *Peer) incKick() {
	p.mu.Lock()
	p.counters.Kick++
	p.mu.Unlock()
}

func (p *Peer) incList() {
	p.mu.Lock()
	p.counters.List++
	p.mu.Unlock()
}

func (p *Peer) snapshotCounters() PeerCounters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// close marks the peer inactive and stops its writer goroutine. Safe to
// call more than once; only the first call has effect.
func (p *Peer) close() {
	p.closeOnce.Do(func() {
		p.active.Store(false)
		close(p.done)
	})
}
