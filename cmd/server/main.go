// Command server runs the broadcast chat server:
//
//	server <authfile> [<port>]
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"chat/internal/authfile"
	"chat/internal/exitcode"
	"chat/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 && len(args) != 2 {
		fmt.Fprint(os.Stderr, exitcode.ServerUsageMessage)
		return int(exitcode.Usage)
	}

	password, err := authfile.Load(args[0])
	if err != nil {
		fmt.Fprint(os.Stderr, exitcode.ServerUsageMessage)
		return int(exitcode.Usage)
	}

	port := "0"
	if len(args) == 2 {
		port = args[1]
	}

	srv := server.New(password)
	addr, err := srv.Listen(":" + port)
	if err != nil {
		fmt.Fprint(os.Stderr, exitcode.CommsMessage)
		return int(exitcode.Comms)
	}

	// The bound port must reach stderr before the server starts accepting
	// — this is the only way a caller learns an ephemeral (port 0) bind.
	fmt.Fprintf(os.Stderr, "%d\n", addr.(*net.TCPAddr).Port)
	srv.Serve()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	srv.Shutdown()
	return int(exitcode.Normal)
}
