// Command c4client is a terminal client for the Connect Four line protocol.
//
// Lines typed on stdin are sent as-is; server frames are printed, with
// BOARD frames drawn as a grid.
//
//	c4client --addr localhost:12345
//	> REGISTER:alice:secret
//	> LOGIN:alice:secret
//	> JOIN_QUEUE
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/connectfour/game/board"
	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "c4client",
		Usage: "Play Connect Four from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "localhost:12345",
				Usage:   "Server TCP address",
				Sources: cli.EnvVars("C4_SERVER_ADDR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("addr"), os.Stdin, os.Stdout)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, addr string, in io.Reader, out io.Writer) error {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	conn := session.NewNetConn(raw)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	fmt.Fprintf(out, "Connected to %s\n", addr)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if err := conn.WriteLine(scanner.Text()); err != nil {
				return
			}
		}
		// End of input: let the server finish replying before it hangs up
		if tcp, ok := raw.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
	}()

	for {
		line, err := conn.ReadLine()
		if err != nil {
			fmt.Fprintln(out, "Disconnected")
			return nil
		}
		fmt.Fprint(out, render(line))
	}
}

// render formats one server frame for the terminal
func render(line string) string {
	frame := protocol.Parse(line)
	switch frame.Tag {
	case protocol.Board:
		b, err := board.Parse(frame.Payload)
		if err != nil {
			return line + "\n"
		}
		return drawBoard(b)
	case protocol.YourTurn:
		return "Your turn: MOVE:<0-6>\n"
	case protocol.FriendListResponse:
		friends := protocol.DecodeFriends(frame.Payload)
		if len(friends) == 0 {
			return "Friends: none\n"
		}
		var sb strings.Builder
		sb.WriteString("Friends:\n")
		for _, f := range friends {
			state := "offline"
			if f.Online {
				state = "online"
			}
			fmt.Fprintf(&sb, "  %s (%s)\n", f.Username, state)
		}
		return sb.String()
	}
	return line + "\n"
}

func drawBoard(b *board.Board) string {
	var sb strings.Builder
	for row := 0; row < board.Rows; row++ {
		sb.WriteString("|")
		for col := 0; col < board.Cols; col++ {
			switch b.Cell(row, col) {
			case board.PlayerA:
				sb.WriteString("R")
			case board.PlayerB:
				sb.WriteString("Y")
			default:
				sb.WriteString(".")
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString(" 0123456\n")
	return sb.String()
}
