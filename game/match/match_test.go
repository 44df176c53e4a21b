package match

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wricardo/connectfour/game/board"
	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/service"
)

const waitTimeout = 2 * time.Second

var emptyBoard = strings.TrimSuffix(strings.Repeat("0,0,0,0,0,0,0;", board.Rows), ";")

// fakePlayer implements Player over channels
type fakePlayer struct {
	name     string
	lines    chan string
	out      chan string
	released chan struct{}
	releases atomic.Int32
	once     sync.Once
}

func newFakePlayer(name string) *fakePlayer {
	return &fakePlayer{
		name:     name,
		lines:    make(chan string, 16),
		out:      make(chan string, 512),
		released: make(chan struct{}, 8),
	}
}

func (p *fakePlayer) Name() string         { return p.name }
func (p *fakePlayer) Send(line string)     { p.out <- line }
func (p *fakePlayer) Lines() <-chan string { return p.lines }
func (p *fakePlayer) Release() {
	p.releases.Add(1)
	p.released <- struct{}{}
}

func (p *fakePlayer) say(line string) { p.lines <- line }
func (p *fakePlayer) hangUp()         { p.once.Do(func() { close(p.lines) }) }

// next returns the next line sent to the player
func (p *fakePlayer) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-p.out:
		return line
	case <-time.After(waitTimeout):
		t.Fatalf("%s: timed out waiting for a line", p.name)
		return ""
	}
}

func (p *fakePlayer) expect(t *testing.T, want string) {
	t.Helper()
	if got := p.next(t); got != want {
		t.Fatalf("%s: expected %q, got %q", p.name, want, got)
	}
}

// skipTo discards lines until want arrives
func (p *fakePlayer) skipTo(t *testing.T, want string) {
	t.Helper()
	for {
		if p.next(t) == want {
			return
		}
	}
}

// rest returns everything already queued for the player
func (p *fakePlayer) rest() []string {
	var lines []string
	for {
		select {
		case line := <-p.out:
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

// recordingSink implements service.ResultSink
type recordingSink struct {
	mu      sync.Mutex
	results []string
}

func (s *recordingSink) RecordResult(ctx context.Context, username string, r service.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, username+"="+string(r))
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.results...)
}

type fixture struct {
	a, b    *fakePlayer
	sink    *recordingSink
	archive *history.MemoryArchive
	done    chan Outcome
}

func startMatch(t *testing.T, deps Deps) *fixture {
	t.Helper()

	f := &fixture{
		a:       newFakePlayer("alice"),
		b:       newFakePlayer("bob"),
		sink:    &recordingSink{},
		archive: history.NewMemoryArchive(0),
		done:    make(chan Outcome, 1),
	}
	deps.Results = f.sink
	deps.Archive = f.archive

	m := New("match-1", f.a, f.b, deps)
	go func() { f.done <- m.Run(context.Background()) }()

	f.a.expect(t, "GAME_START:You are Player 1 (Red) vs bob")
	f.a.expect(t, "BOARD:"+emptyBoard)
	f.b.expect(t, "GAME_START:You are Player 2 (Yellow) vs alice")
	f.b.expect(t, "BOARD:"+emptyBoard)
	f.a.expect(t, protocol.YourTurn)
	f.b.expect(t, "STATUS:"+protocol.WaitingForOpponent)
	return f
}

func (f *fixture) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-f.done:
		return o
	case <-time.After(waitTimeout):
		t.Fatal("match did not finish")
		return Outcome{}
	}
}

func TestFirstMoveBroadcast(t *testing.T) {
	f := startMatch(t, Deps{})

	f.a.say("MOVE:3")
	want := "BOARD:0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,1,0,0,0"
	f.a.expect(t, want)
	f.b.expect(t, want)
	f.a.expect(t, "STATUS:Player 1 moved.")
	f.b.expect(t, "STATUS:Player 1 moved.")
	f.b.expect(t, protocol.YourTurn)
	f.a.expect(t, "STATUS:"+protocol.WaitingForOpponent)

	f.b.say("LEAVE")
	f.wait(t)
}

func TestHorizontalWin(t *testing.T) {
	f := startMatch(t, Deps{})

	for col := 0; col < 3; col++ {
		c := string(rune('0' + col))
		f.a.say("MOVE:" + c)
		f.a.skipTo(t, "STATUS:"+protocol.WaitingForOpponent)
		f.b.skipTo(t, protocol.YourTurn)
		f.b.say("MOVE:" + c)
		f.b.skipTo(t, "STATUS:"+protocol.WaitingForOpponent)
		f.a.skipTo(t, protocol.YourTurn)
	}

	f.a.say("MOVE:3")
	for _, p := range []*fakePlayer{f.a, f.b} {
		got := p.next(t)
		if got != "BOARD:0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;2,2,2,0,0,0,0;1,1,1,1,0,0,0" {
			t.Fatalf("%s: unexpected board %q", p.name, got)
		}
		p.expect(t, "GAMEOVER:Player 1 wins!")
		p.expect(t, "END:"+protocol.ReplayPrompt)
	}

	got := f.sink.snapshot()
	if len(got) != 2 || got[0] != "alice=win" || got[1] != "bob=loss" {
		t.Errorf("unexpected results %v", got)
	}

	f.a.say("no")
	o := f.wait(t)
	if o.Kind != Win || o.Player != board.PlayerA {
		t.Errorf("unexpected outcome %+v", o)
	}

	records, _ := f.archive.Recent(context.Background(), 10)
	if len(records) != 1 {
		t.Fatalf("Expected 1 archived game, got %d", len(records))
	}
	rec := records[0]
	if rec.Winner != "alice" || rec.Result != history.ResultWin || len(rec.Moves) != 7 {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestChatDuringOpponentTurn(t *testing.T) {
	f := startMatch(t, Deps{})

	f.a.say("MOVE:0")
	f.a.skipTo(t, "STATUS:"+protocol.WaitingForOpponent)
	f.b.skipTo(t, protocol.YourTurn)

	// It is bob's turn; alice chats. A blank chat is dropped.
	f.a.say("CHAT:   ")
	f.a.say("CHAT:good luck")
	f.a.expect(t, "CHAT:alice: good luck")
	f.b.expect(t, "CHAT:alice: good luck")

	// bob still holds the turn.
	f.b.say("MOVE:4")
	f.a.expect(t, "BOARD:0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;1,0,0,0,2,0,0")
	f.b.skipTo(t, "STATUS:Player 2 moved.")
	f.a.skipTo(t, protocol.YourTurn)

	f.a.say("LEAVE")
	f.wait(t)
}

func TestDisconnectMidTurn(t *testing.T) {
	f := startMatch(t, Deps{})

	f.a.hangUp()
	f.b.expect(t, "GAMEOVER:"+protocol.OpponentLeft)

	o := f.wait(t)
	if o.Kind != Abandoned || o.Player != board.PlayerA {
		t.Errorf("unexpected outcome %+v", o)
	}

	got := f.sink.snapshot()
	if len(got) != 2 || got[0] != "alice=loss" || got[1] != "bob=win" {
		t.Errorf("unexpected results %v", got)
	}

	for _, line := range f.b.rest() {
		if strings.HasPrefix(line, protocol.End) {
			t.Errorf("replay vote issued after disconnect: %q", line)
		}
	}
	if f.a.releases.Load() != 1 || f.b.releases.Load() != 1 {
		t.Errorf("expected one release each, got %d/%d", f.a.releases.Load(), f.b.releases.Load())
	}

	records, _ := f.archive.Recent(context.Background(), 1)
	if len(records) != 1 || records[0].Result != history.ResultAbandoned || records[0].Winner != "bob" {
		t.Errorf("unexpected archive %+v", records)
	}
}

func TestLeaveByWaitingPlayer(t *testing.T) {
	f := startMatch(t, Deps{})

	f.b.say("LEAVE")
	f.a.expect(t, "GAMEOVER:"+protocol.OpponentLeft)

	o := f.wait(t)
	if o.Winner() != board.PlayerA {
		t.Errorf("Expected Player 1 to be awarded the win, got %+v", o)
	}
}

// winFor drives a quick vertical win for alice
func winFor(t *testing.T, f *fixture) {
	t.Helper()
	for i := 0; i < 3; i++ {
		f.a.say("MOVE:0")
		f.b.skipTo(t, protocol.YourTurn)
		f.b.say("MOVE:1")
		f.a.skipTo(t, protocol.YourTurn)
	}
	f.a.say("MOVE:0")
	f.a.skipTo(t, "END:"+protocol.ReplayPrompt)
	f.b.skipTo(t, "END:"+protocol.ReplayPrompt)
}

func TestReplayDeclined(t *testing.T) {
	f := startMatch(t, Deps{})
	winFor(t, f)

	f.a.say("yes")
	f.b.say("no")

	f.a.expect(t, "STATUS:"+protocol.ReplayDeclined)
	f.b.expect(t, "STATUS:"+protocol.ReplayDeclined)

	f.wait(t)
	if f.a.releases.Load() != 1 || f.b.releases.Load() != 1 {
		t.Errorf("expected one release each, got %d/%d", f.a.releases.Load(), f.b.releases.Load())
	}
}

func TestReplayAccepted(t *testing.T) {
	f := startMatch(t, Deps{})
	winFor(t, f)

	f.b.say("CHAT:gg")
	f.a.expect(t, "CHAT:bob: gg")
	f.b.say("YES")
	f.a.say("yes")

	f.a.skipTo(t, "GAME_START:You are Player 1 (Red) vs bob")
	f.a.expect(t, "BOARD:"+emptyBoard)
	f.a.expect(t, protocol.YourTurn)
	f.b.skipTo(t, "GAME_START:You are Player 2 (Yellow) vs alice")
	f.b.expect(t, "BOARD:"+emptyBoard)

	if f.a.releases.Load() != 0 {
		t.Error("players released before the match ended")
	}

	f.b.hangUp()
	f.a.skipTo(t, "GAMEOVER:"+protocol.OpponentLeft)
	f.wait(t)

	records, _ := f.archive.Recent(context.Background(), 10)
	if len(records) != 2 || records[0].Game != 2 || records[1].Game != 1 {
		t.Errorf("unexpected archive %+v", records)
	}
}

func TestReplayDisconnect(t *testing.T) {
	f := startMatch(t, Deps{})
	winFor(t, f)

	f.a.say("yes")
	f.b.hangUp()

	f.a.expect(t, "STATUS:"+protocol.ReplayDeclined)
	f.wait(t)
}

func TestReplayTimeout(t *testing.T) {
	f := startMatch(t, Deps{ReplayTimeout: 50 * time.Millisecond})
	winFor(t, f)

	f.a.expect(t, "STATUS:"+protocol.ReplayDeclined)
	f.wait(t)
}

func TestRejectedInput(t *testing.T) {
	f := startMatch(t, Deps{})

	tests := []struct {
		from *fakePlayer
		line string
		want string
	}{
		{f.b, "MOVE:3", "ERROR:" + protocol.NotYourTurn},
		{f.a, "MOVE:x", "ERROR:" + protocol.InvalidMoveFormat},
		{f.a, "MOVE:7", "ERROR:" + protocol.InvalidMove},
		{f.a, "MOVE:-1", "ERROR:" + protocol.InvalidMove},
		{f.a, "DANCE", "ERROR:" + protocol.UnrecognizedCommand},
	}

	for _, tt := range tests {
		tt.from.say(tt.line)
		tt.from.expect(t, tt.want)
	}

	// Nothing changed: alice can still open in column 3.
	f.a.say("MOVE:3")
	f.b.expect(t, "BOARD:0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,1,0,0,0")

	f.a.say("LEAVE")
	f.wait(t)
}

func TestFullColumnRejected(t *testing.T) {
	f := startMatch(t, Deps{})

	movers := []*fakePlayer{f.a, f.b}
	for i := 0; i < board.Rows; i++ {
		mover, other := movers[i%2], movers[(i+1)%2]
		mover.say("MOVE:2")
		other.skipTo(t, protocol.YourTurn)
	}

	f.a.say("MOVE:2")
	f.a.expect(t, "ERROR:"+protocol.InvalidMove)

	f.a.say("LEAVE")
	f.wait(t)
}

func TestDrawOnLastCell(t *testing.T) {
	nearlyFull := "1,1,2,2,1,1,0;" +
		"2,2,1,1,2,2,1;" +
		"1,1,2,2,1,1,2;" +
		"2,2,1,1,2,2,1;" +
		"1,1,2,2,1,1,2;" +
		"2,2,1,1,2,2,1"
	b, err := board.Parse(nearlyFull)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	a, p := newFakePlayer("alice"), newFakePlayer("bob")
	m := New("draw", a, p, Deps{})
	m.board = b
	m.turn = board.PlayerB
	m.game = 1

	outcome, advanced := m.step(board.PlayerB, "MOVE:6", true)
	if outcome == nil || outcome.Kind != Draw || !advanced {
		t.Fatalf("Expected a draw, got %+v", outcome)
	}

	lines := a.rest()
	if len(lines) != 2 || lines[1] != "GAMEOVER:Draw!" {
		t.Errorf("unexpected broadcasts %v", lines)
	}

	ra, rb, ok := outcome.Results()
	if !ok || ra != service.Draw || rb != service.Draw {
		t.Errorf("unexpected results %v %v", ra, rb)
	}
}

func TestShutdownAbortsMatch(t *testing.T) {
	a, b := newFakePlayer("alice"), newFakePlayer("bob")
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Outcome, 1)
	go func() { done <- New("x", a, b, Deps{Results: sink}).Run(ctx) }()
	a.skipTo(t, protocol.YourTurn)
	cancel()

	select {
	case o := <-done:
		if o.Kind != Aborted {
			t.Errorf("Expected Aborted, got %v", o.Kind)
		}
	case <-time.After(waitTimeout):
		t.Fatal("match ignored cancellation")
	}
	if len(sink.snapshot()) != 0 {
		t.Error("aborted games must not be reported")
	}
	if a.releases.Load() != 1 || b.releases.Load() != 1 {
		t.Error("players not released")
	}
}
