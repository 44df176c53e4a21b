package session

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// State is a connection's position in the lobby lifecycle
type State int32

const (
	Authenticating State = iota
	InLobby
	Queued
	InMatch
	Closed
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case InLobby:
		return "in_lobby"
	case Queued:
		return "queued"
	case InMatch:
		return "in_match"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const DefaultSendBuffer = 64

// inboundBuffer is the number of lines handed to the reader ahead of time
const inboundBuffer = 16

// maxUnread caps the lines held for a connection nobody is reading.
// A client that goes past it is disconnected.
const maxUnread = 256

var (
	ErrClosed  = errors.New("session closed")
	ErrTimeout = errors.New("receive timed out")
)

// Session is one client connection. A read goroutine feeds Lines and a
// write goroutine drains Send, so neither direction blocks the caller.
type Session struct {
	conn  Conn
	addr  string
	name  string
	state atomic.Int32

	in       chan string
	out      chan string
	done     chan struct{}
	closed   chan struct{}
	released chan struct{}

	// unread holds lines the reader has not taken yet. It is filled by
	// readLoop and drained into in by deliverLoop.
	unreadMu sync.Mutex
	unread   []string
	eof      bool
	wake     chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
}

// New wraps conn and starts its read and write goroutines
func New(conn Conn, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}

	s := &Session{
		conn:     conn,
		addr:     conn.RemoteAddr(),
		in:       make(chan string, inboundBuffer),
		out:      make(chan string, sendBuffer),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
		released: make(chan struct{}, 1),
		wake:     make(chan struct{}, 1),
	}
	s.state.Store(int32(Authenticating))

	go s.readLoop()
	go s.deliverLoop()
	go s.writeLoop()

	return s
}

// Name returns the authenticated username, or "" before login
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Addr returns the remote address
func (s *Session) Addr() string {
	return s.addr
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState moves the session to st. A closed session stays closed.
func (s *Session) SetState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) == Closed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Send queues a line for writing without blocking. A client that cannot
// keep up with its buffer is disconnected.
func (s *Session) Send(line string) {
	select {
	case <-s.closed:
		return
	default:
	}

	select {
	case s.out <- line:
	case <-s.closed:
	default:
		log.Printf("[Session %s] send buffer full, disconnecting", s.label())
		s.Close()
	}
}

// Lines delivers inbound lines in arrival order and is closed when the
// connection ends.
func (s *Session) Lines() <-chan string {
	return s.in
}

// Receive waits for the next line. A non-positive timeout waits forever.
// Buffered lines are returned before a close is reported.
func (s *Session) Receive(timeout time.Duration) (string, error) {
	select {
	case line, ok := <-s.in:
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case line, ok := <-s.in:
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	case <-expired:
		return "", ErrTimeout
	case <-s.closed:
		return "", ErrClosed
	}
}

// HasPending reports whether a line is buffered and unread
func (s *Session) HasPending() bool {
	if len(s.in) > 0 {
		return true
	}
	s.unreadMu.Lock()
	defer s.unreadMu.Unlock()
	return len(s.unread) > 0
}

// Release wakes the handler waiting for its match to end. Extra calls
// before the handler wakes are dropped.
func (s *Session) Release() {
	select {
	case s.released <- struct{}{}:
	default:
	}
}

// Released is signalled once per Release
func (s *Session) Released() <-chan struct{} {
	return s.released
}

// Done is closed as soon as the remote side has gone away, even when
// lines it sent are still unread.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close flushes queued output and closes the connection
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closed))
		close(s.closed)
	})
}

// readLoop keeps reading while nobody consumes Lines, so a remote close
// is seen in every state.
func (s *Session) readLoop() {
	defer close(s.done)

	for {
		line, err := s.conn.ReadLine()

		s.unreadMu.Lock()
		if err != nil {
			s.eof = true
			s.unreadMu.Unlock()
			s.signal()
			return
		}
		if len(s.unread) >= maxUnread {
			s.unreadMu.Unlock()
			log.Printf("[Session %s] %d unread lines, disconnecting", s.label(), maxUnread)
			s.Close()
			return
		}
		s.unread = append(s.unread, line)
		s.unreadMu.Unlock()
		s.signal()
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// deliverLoop moves unread lines into in, then closes it once the remote
// side is gone and everything it sent has been taken.
func (s *Session) deliverLoop() {
	defer s.Close()
	defer close(s.in)

	for {
		s.unreadMu.Lock()
		if len(s.unread) > 0 {
			line := s.unread[0]
			s.unread = s.unread[1:]
			s.unreadMu.Unlock()

			select {
			case s.in <- line:
			case <-s.closed:
				return
			}
			continue
		}
		eof := s.eof
		s.unreadMu.Unlock()

		if eof {
			return
		}
		select {
		case <-s.wake:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case line := <-s.out:
			if err := s.conn.WriteLine(line); err != nil {
				log.Printf("[Session %s] write failed: %v", s.label(), err)
				s.Close()
				return
			}
		case <-s.closed:
			s.flush()
			return
		}
	}
}

// flush writes whatever is already queued
func (s *Session) flush() {
	for {
		select {
		case line := <-s.out:
			if err := s.conn.WriteLine(line); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) label() string {
	if name := s.Name(); name != "" {
		return name
	}
	return s.addr
}
