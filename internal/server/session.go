package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chat/internal/protocol"
)

// interMessageDelay is the pause the SERVING loop takes between reads, as
// specified in §4.C.
const interMessageDelay = 100 * time.Millisecond

// session drives one Peer through AUTH_WAIT -> NAME_WAIT -> SERVING ->
// CLOSED (§4.C). It is the Go analogue of the teacher's Client.readPump,
// generalized from a single dispatch switch into the full auth/name/serve
// state machine the original clientThread.c/commands.c implement.
type session struct {
	srv  *Server
	peer *Peer
	log  *logrus.Entry
}

func newSession(srv *Server, peer *Peer) *session {
	return &session{srv: srv, peer: peer, log: logrus.WithField("component", "session")}
}

// run executes the full lifecycle and never returns until the peer is
// CLOSED, at which point its caller is responsible for tearing the
// connection down.
func (s *session) run() {
	if !s.authenticate() {
		return
	}
	name, ok := s.negotiateName()
	if !ok {
		return
	}
	s.serve(name)
	s.leave(name)
}

// readLine reads one line from the peer, reporting eof for both a clean EOF
// and any I/O error (§4.A/§7).
func (s *session) readLine() (string, bool) {
	line, eof, err := s.peer.in.ReadLine()
	if eof || err != nil {
		return "", true
	}
	return string(line), false
}

// authenticate implements AUTH_WAIT.
func (s *session) authenticate() bool {
	if !s.srv.roster.requiresAuth() {
		return true
	}
	s.peer.send(protocol.Build("AUTH"))

	line, eof := s.readLine()
	if eof {
		return false
	}
	cmd, ok := protocol.ParseServerCommand(line)
	if !ok || cmd.Tag != "AUTH" {
		return false
	}
	if !s.srv.roster.checkPassword([]byte(cmd.Field(0))) {
		return false
	}
	s.srv.roster.incAuth()
	s.peer.send(protocol.Build("OK"))
	return true
}

// negotiateName implements NAME_WAIT, looping on WHO:/NAME:/NAME_TAKEN:
// until a unique name is assigned or the peer disconnects.
func (s *session) negotiateName() (string, bool) {
	for {
		s.peer.send(protocol.Build("WHO"))

		line, eof := s.readLine()
		if eof {
			return "", false
		}
		cmd, ok := protocol.ParseServerCommand(line)
		if !ok || cmd.Tag != "NAME" {
			// Any other received command closes the peer without joining.
			return "", false
		}

		// The source increments NAME_COUNT for every NAME attempt, rejected
		// or not (colliding or empty candidates included).
		s.srv.roster.incName()

		name := cmd.Field(0)
		if name != "" && s.srv.roster.tryAdd(name, s.peer) {
			s.peer.send(protocol.Build("OK"))
			sanitised := protocol.Printable(name)
			s.srv.roster.broadcast(protocol.Build("ENTER", sanitised))
			s.srv.printLine(fmt.Sprintf("(%s has entered the chat)\n", sanitised))
			return name, true
		}
		s.peer.send(protocol.Build("NAME_TAKEN"))
	}
}

// serve implements SERVING: repeatedly read and dispatch a command, with a
// fixed inter-iteration delay, until EOF.
func (s *session) serve(name string) {
	for {
		time.Sleep(interMessageDelay)

		line, eof := s.readLine()
		if eof {
			return
		}
		cmd, ok := protocol.ParseServerCommand(line)
		if !ok {
			continue // malformed or unknown command: drop silently (§7)
		}

		switch cmd.Tag {
		case "SAY":
			s.handleSay(name, cmd)
		case "KICK":
			s.handleKick(name, cmd)
		case "LIST":
			s.handleList()
		case "LEAVE":
			s.srv.roster.incLeave()
			return
		default:
			// NAME/AUTH re-sent mid-session: not a recognized SERVING
			// command, dropped like any other malformed input.
		}
	}
}

func (s *session) handleSay(name string, cmd protocol.Command) {
	s.srv.roster.incSay()
	s.peer.incSay()

	sanitisedName := protocol.Printable(name)
	// An absent payload ("SAY") and an empty one ("SAY:") are equivalent
	// on the wire (§4.C): both produce exactly MSG:<name>, no second field.
	if payload := cmd.Field(0); payload != "" {
		sanitisedPayload := protocol.Printable(payload)
		s.srv.roster.broadcast(protocol.Build("MSG", sanitisedName, sanitisedPayload))
		s.srv.printLine(fmt.Sprintf("%s: %s\n", sanitisedName, sanitisedPayload))
		return
	}
	s.srv.roster.broadcast(protocol.Build("MSG", sanitisedName))
	s.srv.printLine(fmt.Sprintf("%s:\n", sanitisedName))
}

func (s *session) handleKick(name string, cmd protocol.Command) {
	s.srv.roster.incKick()
	s.peer.incKick()

	target := s.srv.roster.findByName(cmd.Field(0))
	if target == nil {
		return
	}
	target.kicked.Store(true)
	target.send(protocol.Build("KICK"))
}

func (s *session) handleList() {
	s.srv.roster.incList()
	s.peer.incList()

	names := s.srv.roster.names()
	list := strings.Join(names, ",")
	s.srv.roster.broadcast(protocol.Build("LIST", list))
	s.srv.printLine(fmt.Sprintf("(current chatters: %s)\n", list))
}

// leave implements CLOSED: broadcast LEAVE for a peer that had joined the
// roster (whether it left gracefully, was kicked, or simply disconnected —
// P4, P5's kicked-peer exception), then remove it from the roster.
func (s *session) leave(name string) {
	defer s.srv.roster.remove(s.peer)
	if name == "" {
		return
	}
	sanitised := protocol.Printable(name)
	s.srv.roster.broadcast(protocol.Build("LEAVE", sanitised))
	s.srv.printLine(fmt.Sprintf("(%s has left the chat)\n", sanitised))
	if s.peer.kicked.Load() {
		s.log.WithField("peer", sanitised).Debug("peer removed after kick")
	}
}
