// Command client connects to the broadcast chat server:
//
//	client <name> <authfile> <port> [--color]
package main

import (
	"fmt"
	"net"
	"os"

	"chat/internal/authfile"
	"chat/internal/client"
	"chat/internal/exitcode"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses argv, dials the server, and drives the connection to
// completion, returning the process exit code (§6). Argument parsing stays
// purely positional per the wire spec's literal usage string; the optional
// "--color" switch (this repo's only CLI addition, off by default) is
// stripped out before the three mandatory positionals are counted, so it may
// appear anywhere in argv without disturbing `client name authfile port`.
func run(args []string) int {
	var positional []string
	color := false
	for _, a := range args {
		if a == "--color" {
			color = true
			continue
		}
		positional = append(positional, a)
	}
	if len(positional) != 3 {
		fmt.Fprint(os.Stderr, exitcode.ClientUsageMessage)
		return int(exitcode.Usage)
	}
	name, authPath, port := positional[0], positional[1], positional[2]

	password, err := authfile.Load(authPath)
	if err != nil {
		fmt.Fprint(os.Stderr, exitcode.ClientUsageMessage)
		return int(exitcode.Usage)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		fmt.Fprint(os.Stderr, exitcode.CommsMessage)
		return int(exitcode.Comms)
	}

	code := client.New(conn, name, password, color).Run()
	switch code {
	case exitcode.Comms:
		fmt.Fprint(os.Stderr, exitcode.CommsMessage)
	case exitcode.Kicked:
		fmt.Fprint(os.Stderr, exitcode.KickedMessage)
	case exitcode.FailedAuth:
		fmt.Fprint(os.Stderr, exitcode.FailedAuthMessage)
	}
	return int(code)
}
