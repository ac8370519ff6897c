// Package server implements the broadcast chat server: the roster of
// connected peers, the per-connection state machine, and the stats reporter
// that dumps counters to standard error on SIGHUP.
//
// Concurrency overview
// --------------------
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Accept goroutine                                        │
//	│  One goroutine per connection: authenticate, negotiate a │
//	│  name, then serve commands until EOF (session.go).       │
//	└───────────────────┬───────────────────────────────────────┘
//	                    │  tryAdd / remove / broadcast under roster.mu
//	                    ▼
//	┌─────────────────────────────────────────────────────────┐
//	│  Roster                                                  │
//	│  Sorted-by-name peer set, global counters, shared        │
//	│  password — all guarded by one mutex (roster.go).        │
//	└─────────────────────────────────────────────────────────┘
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Stats goroutine                                         │
//	│  Blocks on SIGHUP; dumps the roster report to stderr     │
//	│  (stats.go).                                             │
//	└─────────────────────────────────────────────────────────┘
package server

import (
	"io"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server ties together the Roster, the accept loop, and the server's
// standard-output mirror of chat activity.
type Server struct {
	roster   *Roster
	listener net.Listener

	stdoutMu sync.Mutex
	stdout   io.Writer

	log *logrus.Entry
}

// New creates a Server. password may be nil/empty, meaning no
// authentication is required (Roster invariant: absent password).
func New(password []byte) *Server {
	r := newRoster()
	r.setPassword(password)
	return &Server{
		roster: r,
		stdout: os.Stdout,
		log:    logrus.WithField("component", "server"),
	}
}

// Listen binds addr ("host:port", or ":0" for an ephemeral port) and returns
// the resolved address, so the ephemeral-port case (§6: print the bound port
// before accepting) can be reported by the caller before Serve starts taking
// connections.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve starts the stats reporter and the accept loop in the background.
// Callers must invoke Listen first and report the bound port before calling
// Serve, per §6.
func (s *Server) Serve() {
	stats := newStatsReporter(s)
	go stats.run()
	go s.acceptLoop()
}

// Shutdown closes the listener, ending the accept loop. Already-serving
// peers are not forcibly disconnected; they wind down on their own EOF.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	peer := newPeer(conn)
	defer func() {
		peer.close()
		conn.Close()
	}()
	newSession(s, peer).run()
}

// printLine atomically writes one already-newline-terminated line to the
// server's standard output, so concurrent sessions never interleave partial
// lines (§5: stdout writes are individually atomic per line).
func (s *Server) printLine(line string) {
	s.stdoutMu.Lock()
	defer s.stdoutMu.Unlock()
	io.WriteString(s.stdout, line)
}
