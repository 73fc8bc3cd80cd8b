// Command tcpchat is an interactive client for the courier chat protocol.
// It frames stdin lines as chat messages and prints every frame the server
// pushes back. Address messages with "@name text"; plain lines go to home.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/mdelcroix/courier/internal/proto"
)

func main() {
	addr := flag.String("addr", "localhost:12800", "server address")
	user := flag.String("user", "", "username to chat as")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "tcpchat: -user is required")
		os.Exit(2)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tcpchat: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("connected to %s as %s; @name for direct messages, ctrl-d to quit\n", *addr, *user)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := proto.NewReader(conn, 1<<16)
		for {
			f, err := r.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					fmt.Fprintf(os.Stderr, "tcpchat: read: %v\n", err)
				}
				return
			}
			printFrame(f)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		receiver := proto.HomeReceiver
		text := line
		if strings.HasPrefix(line, "@") {
			name, rest, ok := strings.Cut(line[1:], " ")
			if !ok || name == "" {
				fmt.Fprintln(os.Stderr, "tcpchat: direct messages look like: @name text")
				continue
			}
			receiver, text = name, rest
		}
		f := proto.Frame{
			Command: proto.CommandMessage,
			Payload: fmt.Sprintf("%s:%s:%s", *user, receiver, text),
		}
		if err := proto.Write(conn, f); err != nil {
			fmt.Fprintf(os.Stderr, "tcpchat: write: %v\n", err)
			break
		}
	}

	conn.Close()
	<-done
}

func printFrame(f proto.Frame) {
	switch f.Command {
	case proto.CommandMessage, proto.CommandHelloWorld, proto.CommandWelcome, proto.CommandGoodBye:
		fmt.Printf("[%s] %s\n", f.Command, f.Payload)
	case proto.CommandConnNb:
		fmt.Printf("[online] %s\n", f.Payload)
	case proto.CommandLastID:
		fmt.Printf("[last-id] %s\n", f.Payload)
	case proto.CommandAddReact, proto.CommandRmReact:
		fmt.Printf("[reaction] %s\n", f.Payload)
	default:
		fmt.Printf("[0x%02x] %s\n", byte(f.Command), f.Payload)
	}
}
