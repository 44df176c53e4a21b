package session

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// MaxLineLength bounds a single inbound frame
	MaxLineLength = 64 * 1024

	writeWait = 10 * time.Second
)

// Conn is a line-oriented duplex transport. ReadLine is only called from the
// session's read goroutine and WriteLine only from its write goroutine.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// netConn adapts a stream connection to Conn
type netConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewNetConn wraps a TCP (or any stream) connection
func NewNetConn(conn net.Conn) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineLength)
	return &netConn{conn: conn, scanner: scanner}
}

func (c *netConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", net.ErrClosed
	}
	return strings.TrimRight(c.scanner.Text(), "\r"), nil
}

func (c *netConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return err
	}
	return nil
}

func (c *netConn) Close() error {
	return c.conn.Close()
}

func (c *netConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
