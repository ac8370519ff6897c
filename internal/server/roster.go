package server

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"sync"

	"chat/internal/protocol"
)

// GlobalCounters tracks how many times the server as a whole has seen each
// command (§3, §4.F).
type GlobalCounters struct {
	Auth  uint64
	Name  uint64
	Say   uint64
	Kick  uint64
	List  uint64
	Leave uint64
}

// Roster is the ordered set of active peers plus the shared password and
// global counters (§3, §4.D). Every field is guarded by mu; the locking
// discipline is roster-first-then-peer, never the reverse (§5), so no
// method here may call back into code that re-acquires mu.
//
// This mirrors the teacher's store.Store: a single mutex guarding plain Go
// maps/slices, rather than the teacher's hub.go's single-owner-goroutine
// actor — the spec's stats reporter and LIST both need a deterministic,
// point-in-time, lock-held view of *every* piece of roster state at once,
// which a mutex gives for free and a request/reply channel would have to
// reinvent.
type Roster struct {
	mu     sync.Mutex
	peers  []*Peer // sorted ascending by name, byte-wise (R3)
	byName map[string]*Peer

	password    []byte
	hasPassword bool

	counters GlobalCounters
}

func newRoster() *Roster {
	return &Roster{byName: make(map[string]*Peer)}
}

// setPassword installs the shared password once, before the server starts
// accepting connections.
func (r *Roster) setPassword(password []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(password) > 0 {
		r.password = password
		r.hasPassword = true
	}
}

// requiresAuth reports whether AUTH_WAIT must challenge new peers.
func (r *Roster) requiresAuth() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPassword
}

// checkPassword reports whether candidate matches the shared password
// byte-for-byte.
func (r *Roster) checkPassword(candidate []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Equal(candidate, r.password)
}

// tryAdd atomically checks that name is free and, if so, registers peer
// under it, keeping peers sorted by name (R1, R3). It returns false without
// any effect when the name is already taken.
func (r *Roster) tryAdd(name string, peer *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[name]; taken {
		return false
	}
	peer.setName(name)
	idx := sort.Search(len(r.peers), func(i int) bool { return r.peers[i].getName() >= name })
	r.peers = append(r.peers, nil)
	copy(r.peers[idx+1:], r.peers[idx:])
	r.peers[idx] = peer
	r.byName[name] = peer
	return true
}

// remove unlinks peer from the roster, if present. A no-op for a peer that
// never completed naming.
func (r *Roster) remove(peer *Peer) {
	name := peer.getName()
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName[name] != peer {
		return
	}
	delete(r.byName, name)
	for i, p := range r.peers {
		if p == peer {
			r.peers = append(r.peers[:i], r.peers[i+1:]...)
			break
		}
	}
}

// findByName returns the peer currently registered under name, or nil.
func (r *Roster) findByName(name string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[name]
}

// names returns a snapshot of roster names in sort order, sanitised for
// presentation.
func (r *Roster) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.peers))
	for i, p := range r.peers {
		out[i] = protocol.Printable(p.getName())
	}
	return out
}

// broadcast delivers line to every named, active peer present in the
// roster at the instant the lock is acquired (§4.E). Later joins/leaves
// during this call neither see nor are seen by it; per-peer delivery order
// between broadcasts follows the order callers acquire mu.
func (r *Roster) broadcast(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers {
		if p.active.Load() && p.getName() != "" {
			p.send(line)
		}
	}
}

func (r *Roster) incAuth()  { r.mu.Lock(); r.counters.Auth++; r.mu.Unlock() }
func (r *Roster) incName()  { r.mu.Lock(); r.counters.Name++; r.mu.Unlock() }
func (r *Roster) incSay()   { r.mu.Lock(); r.counters.Say++; r.mu.Unlock() }
func (r *Roster) incKick()  { r.mu.Lock(); r.counters.Kick++; r.mu.Unlock() }
func (r *Roster) incList()  { r.mu.Lock(); r.counters.List++; r.mu.Unlock() }
func (r *Roster) incLeave() { r.mu.Lock(); r.counters.Leave++; r.mu.Unlock() }

// writeStats emits the §4.F report: one @CLIENTS@ section listing every
// peer's per-command counters in roster order, then one @SERVER@ section
// with the global counters — all under a single lock acquisition so the
// report reflects one consistent instant and is never interleaved with a
// concurrent dump.
func (r *Roster) writeStats(w *bufio.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprint(w, "@CLIENTS@\n"); err != nil {
		return err
	}
	for _, p := range r.peers {
		c := p.snapshotCounters()
		if _, err := fmt.Fprintf(w, "%s:SAY:%d:KICK:%d:LIST:%d\n",
			protocol.Printable(p.getName()), c.Say, c.Kick, c.List); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "@SERVER@\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "server:AUTH:%d:NAME:%d:SAY:%d:KICK:%d:LIST:%d:LEAVE:%d\n",
		r.counters.Auth, r.counters.Name, r.counters.Say, r.counters.Kick,
		r.counters.List, r.counters.Leave); err != nil {
		return err
	}
	return w.Flush()
}
