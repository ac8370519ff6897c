// Package client implements the connecting peer's side of the protocol: the
// inbound task that mirrors the server's state machine and the outbound
// task that turns stdin lines into commands (§4.G).
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat/internal/exitcode"
	"chat/internal/protocol"
)

// stdinEOFGrace is how long the outbound task waits after its own stdin
// closes before exiting normally, so a concurrent server-driven close (a
// kick arriving at almost the same moment) wins the race for exitCode.
const stdinEOFGrace = 50 * time.Millisecond

type driverState int

const (
	stateAuthWait driverState = iota
	stateNameWait
	stateServing
)

// Driver runs the dual-loop client side of one connection: an inbound
// goroutine driving the mirror state machine, and an outbound goroutine
// turning stdin lines into commands once authenticated.
type Driver struct {
	conn     net.Conn
	in       *protocol.LineReader
	out      chan string
	password []byte
	baseName string
	suffix   int

	authenticated atomic.Bool
	ready         chan struct{}
	readyOnce     sync.Once

	exit     exitcode.First
	done     chan struct{}
	doneOnce sync.Once

	stdout io.Writer
	stdin  io.Reader
	style  *styler
}

// New creates a Driver for conn, ready to negotiate as name against
// password (from the client's own authfile, possibly empty meaning "no
// password needed").
func New(conn net.Conn, name string, password []byte, color bool) *Driver {
	return &Driver{
		conn:     conn,
		in:       protocol.NewLineReader(conn),
		out:      make(chan string, 64),
		password: password,
		baseName: name,
		suffix:   -1,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		stdout:   os.Stdout,
		stdin:    os.Stdin,
		style:    newStyler(color),
	}
}

// Run drives both tasks to completion and returns the first terminal exit
// code recorded by either of them.
func (d *Driver) Run() exitcode.Code {
	var wg sync.WaitGroup
	wg.Add(1)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		d.writeLoop()
	}()
	go func() {
		defer wg.Done()
		d.inboundLoop()
	}()
	go d.outboundLoop()

	<-d.done
	// Lines queued before done (such as the LEAVE: sent for "*LEAVE:") are
	// written before the connection is closed.
	<-writerDone
	w := bufio.NewWriter(d.conn)
	for len(d.out) > 0 {
		protocol.WriteLine(w, <-d.out)
	}
	d.conn.Close()
	wg.Wait()
	return d.exit.Get()
}

// writeLoop serializes every outbound line onto the connection, mirroring
// the server-side Peer.writeLoop so a stuck write never corrupts framing.
// It exits on done rather than on d.out closing, so a concurrent send()
// blocked on d.out <- line can never race a channel close.
func (d *Driver) writeLoop() {
	w := bufio.NewWriter(d.conn)
	for {
		select {
		case line := <-d.out:
			protocol.WriteLine(w, line)
		case <-d.done:
			return
		}
	}
}

func (d *Driver) send(line string) {
	select {
	case d.out <- line:
	case <-d.done:
	}
}

func (d *Driver) terminate(code exitcode.Code) {
	d.exit.Set(code)
	d.doneOnce.Do(func() { close(d.done) })
}

func (d *Driver) candidateName() string {
	if d.suffix < 0 {
		return d.baseName
	}
	return d.baseName + strconv.Itoa(d.suffix)
}

// inboundLoop consumes server commands and mirrors AUTH_WAIT -> NAME_WAIT ->
// SERVING (§4.G).
func (d *Driver) inboundLoop() {
	state := stateAuthWait
	for {
		line, eof, err := d.in.ReadLine()
		if eof || err != nil {
			d.terminate(exitcode.Comms)
			return
		}
		cmd, ok := protocol.ParseClientCommand(string(line))
		if !ok {
			continue
		}

		switch state {
		case stateAuthWait:
			switch cmd.Tag {
			case "AUTH":
				d.send(protocol.Build("AUTH", string(d.password)))
				reply, eof2, err2 := d.in.ReadLine()
				if eof2 || err2 != nil {
					d.terminate(exitcode.Comms)
					return
				}
				rc, ok2 := protocol.ParseClientCommand(string(reply))
				if !ok2 || rc.Tag != "OK" {
					d.terminate(exitcode.FailedAuth)
					return
				}
				state = stateNameWait
			case "WHO":
				// The server required no password; this WHO: is the first
				// step of name negotiation.
				state = stateNameWait
				d.send(protocol.Build("NAME", d.candidateName()))
			}

		case stateNameWait:
			switch cmd.Tag {
			case "WHO":
				d.send(protocol.Build("NAME", d.candidateName()))
			case "OK":
				d.authenticated.Store(true)
				d.readyOnce.Do(func() { close(d.ready) })
				state = stateServing
			case "NAME_TAKEN":
				d.suffix++
			}

		case stateServing:
			d.dispatchServing(cmd)
		}
	}
}

func (d *Driver) dispatchServing(cmd protocol.Command) {
	switch cmd.Tag {
	case "MSG":
		name := cmd.Field(0)
		if cmd.HasField(1) {
			d.println(d.style.renderMsg(name, cmd.Field(1), name == d.candidateName()))
		} else {
			d.println(d.style.renderMsg(name, "", name == d.candidateName()))
		}
	case "ENTER":
		d.println(d.style.renderSystem(fmt.Sprintf("(%s has entered the chat)", cmd.Field(0))))
	case "LEAVE":
		d.println(d.style.renderSystem(fmt.Sprintf("(%s has left the chat)", cmd.Field(0))))
	case "LIST":
		d.println(d.style.renderSystem(fmt.Sprintf("(current chatters: %s)", cmd.Field(0))))
	case "KICK":
		d.terminate(exitcode.Kicked)
	}
}

func (d *Driver) println(s string) {
	fmt.Fprintln(d.stdout, s)
}

// outboundLoop waits for authentication, then turns each stdin line into a
// command: a leading '*' forwards the remainder verbatim, "*LEAVE:" also
// prints the local leave notice and exits normally, anything else is sent
// as SAY:<line>.
func (d *Driver) outboundLoop() {
	select {
	case <-d.ready:
	case <-d.done:
		return
	}

	scanner := bufio.NewScanner(d.stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "*LEAVE:":
			d.send("LEAVE:")
			d.println(d.style.renderSystem(fmt.Sprintf("(%s has left the chat)", d.candidateName())))
			d.terminate(exitcode.Normal)
			return
		case strings.HasPrefix(line, "*"):
			d.send(line[1:])
		default:
			d.send(protocol.Build("SAY", line))
		}
	}

	time.Sleep(stdinEOFGrace)
	d.terminate(exitcode.Normal)
}
