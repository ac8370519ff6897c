package client

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat/internal/exitcode"
)

// serverHarness plays the server side of a Driver under test: it owns the
// other end of a net.Pipe and lets the test script exactly what the "server"
// sends and expects to receive.
type serverHarness struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newServerHarness(conn net.Conn) *serverHarness {
	return &serverHarness{conn: conn, reader: bufio.NewReader(conn)}
}

func (h *serverHarness) send(t *testing.T, line string) {
	t.Helper()
	_, err := h.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (h *serverHarness) recv(t *testing.T) string {
	t.Helper()
	h.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := h.reader.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func runDriver(d *Driver) <-chan exitcode.Code {
	ch := make(chan exitcode.Code, 1)
	go func() { ch <- d.Run() }()
	return ch
}

func TestDriverAuthAndNameHappyPath(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", []byte("hunter2"), false)
	d.stdin = strings.NewReader("")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)

	srv.send(t, "AUTH:")
	require.Equal(t, "AUTH:hunter2", srv.recv(t))
	srv.send(t, "OK:")

	srv.send(t, "WHO:")
	require.Equal(t, "NAME:alice", srv.recv(t))
	srv.send(t, "OK:")

	// stdin is already exhausted, so the outbound task's EOF grace fires and
	// the driver exits normally once handshake completes.
	code := <-done
	require.Equal(t, exitcode.Normal, code)
}

func TestDriverNameCollisionBumpsSuffix(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "bob", nil, false)
	d.stdin = strings.NewReader("")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)

	srv.send(t, "WHO:")
	require.Equal(t, "NAME:bob", srv.recv(t))
	srv.send(t, "NAME_TAKEN:")

	srv.send(t, "WHO:")
	require.Equal(t, "NAME:bob0", srv.recv(t))
	srv.send(t, "OK:")

	code := <-done
	require.Equal(t, exitcode.Normal, code)
}

func TestDriverWrongPasswordExitsFailedAuth(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", []byte("wrong"), false)
	d.stdin = strings.NewReader("")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "AUTH:")
	require.Equal(t, "AUTH:wrong", srv.recv(t))
	srv.send(t, "NAME_TAKEN:") // any non-OK reply fails auth

	code := <-done
	require.Equal(t, exitcode.FailedAuth, code)
}

func TestDriverEOFDuringAuthIsComms(t *testing.T) {
	local, remote := net.Pipe()
	srv := newServerHarness(remote)

	d := New(local, "alice", []byte("hunter2"), false)
	d.stdin = strings.NewReader("")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "AUTH:")
	require.Equal(t, "AUTH:hunter2", srv.recv(t))
	remote.Close()

	code := <-done
	require.Equal(t, exitcode.Comms, code)
}

func TestDriverKickExitsKicked(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", nil, false)
	d.stdin = strings.NewReader("")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "WHO:")
	require.Equal(t, "NAME:alice", srv.recv(t))
	srv.send(t, "OK:")
	srv.send(t, "KICK:")

	code := <-done
	require.Equal(t, exitcode.Kicked, code)
}

func TestDriverDisplaysMsgEnterLeaveList(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", nil, false)
	// A blocking stdin keeps the outbound task from racing the inbound
	// task's terminal condition while the test observes displayed output.
	stdinR, stdinW := io.Pipe()
	t.Cleanup(func() { stdinW.Close() })
	d.stdin = stdinR
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "WHO:")
	require.Equal(t, "NAME:alice", srv.recv(t))
	srv.send(t, "OK:")

	srv.send(t, "MSG:bob:hi there")
	srv.send(t, "MSG:bob")
	srv.send(t, "ENTER:carol")
	srv.send(t, "LEAVE:carol")
	srv.send(t, "LIST:alice,bob")

	time.Sleep(100 * time.Millisecond)
	remote.Close()
	local.Close()
	<-done

	out := stdout.String()
	require.Contains(t, out, "bob: hi there\n")
	require.Contains(t, out, "bob:\n")
	require.Contains(t, out, "(carol has entered the chat)\n")
	require.Contains(t, out, "(carol has left the chat)\n")
	require.Contains(t, out, "(current chatters: alice,bob)\n")
}

func TestDriverOutboundSayAndStar(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", nil, false)
	d.stdin = strings.NewReader("hello world\n*LIST:\n")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "WHO:")
	require.Equal(t, "NAME:alice", srv.recv(t))
	srv.send(t, "OK:")

	require.Equal(t, "SAY:hello world", srv.recv(t))
	require.Equal(t, "LIST:", srv.recv(t))

	remote.Close()
	local.Close()
	<-done
}

func TestDriverStarLeaveExitsNormalAndPrintsLocally(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	srv := newServerHarness(remote)

	d := New(local, "alice", nil, false)
	d.stdin = strings.NewReader("*LEAVE:\n")
	var stdout bytes.Buffer
	d.stdout = &stdout

	done := runDriver(d)
	srv.send(t, "WHO:")
	require.Equal(t, "NAME:alice", srv.recv(t))
	srv.send(t, "OK:")

	require.Equal(t, "LEAVE:", srv.recv(t))

	code := <-done
	require.Equal(t, exitcode.Normal, code)
	require.Contains(t, stdout.String(), "(alice has left the chat)\n")
}

func TestDriverConcurrentSendAndTerminateNeverPanics(t *testing.T) {
	// Regression: Run() used to close(d.out) right after <-d.done unblocked,
	// racing any send() mid-select on d.out <- line. d.out is never closed
	// now; writeLoop exits via d.done instead.
	for i := 0; i < 200; i++ {
		local, remote := net.Pipe()
		d := New(local, "alice", nil, false)
		d.stdin = strings.NewReader("")
		var stdout bytes.Buffer
		d.stdout = &stdout

		done := runDriver(d)

		go func() { d.send("SAY:hi") }()
		d.terminate(exitcode.Normal)

		remote.Close()
		<-done
	}
}

func TestCandidateNameUsesSuffix(t *testing.T) {
	d := &Driver{baseName: "bob", suffix: -1}
	require.Equal(t, "bob", d.candidateName())
	d.suffix = 0
	require.Equal(t, "bob0", d.candidateName())
	d.suffix = 3
	require.Equal(t, "bob3", d.candidateName())
}
