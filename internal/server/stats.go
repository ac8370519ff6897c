package server

import (
	"bufio"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// statsReporter is the §4.F stats task: a single long-lived goroutine that
// blocks on the reporting signal (SIGHUP) and, on each delivery, writes a
// deterministic report of every peer's and the server's counters to stderr.
// It is re-armable — signal.Notify keeps delivering SIGHUP for as long as
// the process runs, so a second signal produces a second dump.
type statsReporter struct {
	srv *Server
	log *logrus.Entry
}

func newStatsReporter(srv *Server) *statsReporter {
	return &statsReporter{srv: srv, log: logrus.WithField("component", "stats")}
}

func (r *statsReporter) run() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	w := bufio.NewWriter(os.Stderr)
	for range sighup {
		if err := r.srv.roster.writeStats(w); err != nil {
			r.log.WithError(err).Warn("stats dump failed")
		}
	}
}
