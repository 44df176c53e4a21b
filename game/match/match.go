package match

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wricardo/connectfour/game/board"
	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/service"
)

const reportTimeout = 5 * time.Second

// Player is the match's view of a connection
type Player interface {
	Name() string
	// Send must not block
	Send(line string)
	// Lines is closed when the connection ends
	Lines() <-chan string
	// Release wakes the player's lobby loop
	Release()
}

// Deps are the match's collaborators. Any of them may be nil.
type Deps struct {
	Results service.ResultSink
	Archive history.Archive
	Events  service.EventPublisher
	// ReplayTimeout bounds the replay vote; zero waits indefinitely
	ReplayTimeout time.Duration
}

// Match is one series of games between two fixed players
type Match struct {
	id      string
	players [2]Player
	deps    Deps

	board     *board.Board
	turn      board.Cell
	game      int
	moves     []int
	state     string
	startedAt time.Time
	gameStart time.Time

	info        atomic.Pointer[service.MatchInfo]
	releaseOnce sync.Once
}

// New creates a match. a plays first as Player 1.
func New(id string, a, b Player, deps Deps) *Match {
	m := &Match{
		id:        id,
		players:   [2]Player{a, b},
		deps:      deps,
		board:     board.New(),
		turn:      board.PlayerA,
		state:     "starting",
		startedAt: time.Now(),
	}
	m.snapshot()
	return m
}

// ID returns the match identifier
func (m *Match) ID() string {
	return m.id
}

// Info returns a snapshot safe to read from any goroutine
func (m *Match) Info() service.MatchInfo {
	return *m.info.Load()
}

// Run plays games until a player leaves or declines a rematch, then
// releases both players. It returns the outcome of the last game.
func (m *Match) Run(ctx context.Context) Outcome {
	defer m.release()

	m.logf("started: %s vs %s", m.name(board.PlayerA), m.name(board.PlayerB))
	m.publish(service.Event{Type: service.EventMatchStarted})
	defer m.publish(service.Event{Type: service.EventMatchEnded})

	for {
		m.reset()
		m.announceStart()

		outcome := m.playGame(ctx)
		m.report(ctx, outcome)

		if outcome.Kind == Abandoned || outcome.Kind == Aborted {
			m.setState("terminated")
			return outcome
		}

		if !m.replayVote(ctx) {
			m.broadcast(protocol.Format(protocol.Status, protocol.ReplayDeclined))
			m.setState("terminated")
			m.logf("ended after %d game(s)", m.game)
			return outcome
		}
		m.logf("rematch accepted")
	}
}

// reset starts a fresh game with Player 1 to move
func (m *Match) reset() {
	m.board = board.New()
	m.turn = board.PlayerA
	m.moves = m.moves[:0]
	m.game++
	m.gameStart = time.Now()
	m.setState("playing")
}

func (m *Match) announceStart() {
	m.send(board.PlayerA, protocol.Format(protocol.GameStart,
		fmt.Sprintf("You are Player 1 (Red) vs %s", m.name(board.PlayerB))))
	m.send(board.PlayerB, protocol.Format(protocol.GameStart,
		fmt.Sprintf("You are Player 2 (Yellow) vs %s", m.name(board.PlayerA))))
	m.broadcast(protocol.Format(protocol.Board, m.board.Serialize()))
}

// playGame runs turns until the game is decided
func (m *Match) playGame(ctx context.Context) Outcome {
	for {
		m.snapshot()
		m.send(m.turn, protocol.YourTurn)
		m.send(m.turn.Opponent(), protocol.Format(protocol.Status, protocol.WaitingForOpponent))

		for advanced := false; !advanced; {
			var (
				outcome *Outcome
				from    board.Cell
				line    string
				ok      bool
			)

			select {
			case line, ok = <-m.player(board.PlayerA).Lines():
				from = board.PlayerA
			case line, ok = <-m.player(board.PlayerB).Lines():
				from = board.PlayerB
			case <-ctx.Done():
				m.broadcast(protocol.Format(protocol.GameOver, "Server shutting down."))
				return Outcome{Kind: Aborted}
			}

			outcome, advanced = m.step(from, line, ok)
			if outcome != nil {
				return *outcome
			}
		}
	}
}

// step applies one inbound line. It returns a non-nil outcome when the game
// is over and advanced when the turn passed to the other player.
func (m *Match) step(from board.Cell, line string, ok bool) (*Outcome, bool) {
	if !ok {
		return m.abandon(from, "disconnected"), false
	}

	frame := protocol.Parse(line)
	switch frame.Tag {
	case "":
		return nil, false

	case protocol.Chat:
		m.chat(from, frame.Payload)
		return nil, false

	case protocol.Leave:
		return m.abandon(from, "left"), false

	case protocol.Move:
		if from != m.turn {
			m.send(from, protocol.Format(protocol.Error, protocol.NotYourTurn))
			return nil, false
		}
		return m.move(from, frame.Payload)

	default:
		m.send(from, protocol.Format(protocol.Error, protocol.UnrecognizedCommand))
		return nil, false
	}
}

func (m *Match) move(from board.Cell, payload string) (*Outcome, bool) {
	col, err := protocol.ParseColumn(payload)
	if err != nil {
		m.send(from, protocol.Format(protocol.Error, protocol.InvalidMoveFormat))
		return nil, false
	}

	if m.board.Drop(col, from) == board.Invalid {
		m.send(from, protocol.Format(protocol.Error, protocol.InvalidMove))
		return nil, false
	}
	m.moves = append(m.moves, col)

	m.broadcast(protocol.Format(protocol.Board, m.board.Serialize()))

	if m.board.CheckWin(from) {
		m.broadcast(protocol.Format(protocol.GameOver, from.String()+" wins!"))
		m.logf("game %d won by %s", m.game, m.name(from))
		return &Outcome{Kind: Win, Player: from}, true
	}

	if m.board.IsFull() {
		m.broadcast(protocol.Format(protocol.GameOver, protocol.DrawResult))
		m.logf("game %d drawn", m.game)
		return &Outcome{Kind: Draw}, true
	}

	m.broadcast(protocol.Format(protocol.Status, from.String()+" moved."))
	m.turn = m.turn.Opponent()
	return nil, true
}

func (m *Match) abandon(from board.Cell, how string) *Outcome {
	m.send(from.Opponent(), protocol.Format(protocol.GameOver, protocol.OpponentLeft))
	m.logf("%s %s during game %d", m.name(from), how, m.game)
	return &Outcome{Kind: Abandoned, Player: from}
}

// chat relays trimmed text prefixed with the sender's name. Blank chat is dropped.
func (m *Match) chat(from board.Cell, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m.broadcast(protocol.Format(protocol.Chat, m.name(from)+": "+text))
}

// replayVote asks both players for a rematch at once and collects the
// answers as they arrive, so the first decline ends the vote without
// waiting on the other player. Chat is still relayed while the vote is open.
func (m *Match) replayVote(ctx context.Context) bool {
	m.setState("replay_vote")
	m.broadcast(protocol.Format(protocol.End, protocol.ReplayPrompt))

	var expired <-chan time.Time
	if m.deps.ReplayTimeout > 0 {
		timer := time.NewTimer(m.deps.ReplayTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	var voted [2]bool
	for !voted[0] || !voted[1] {
		var (
			from board.Cell
			line string
			ok   bool
		)

		select {
		case line, ok = <-m.player(board.PlayerA).Lines():
			from = board.PlayerA
		case line, ok = <-m.player(board.PlayerB).Lines():
			from = board.PlayerB
		case <-expired:
			m.logf("replay vote timed out")
			return false
		case <-ctx.Done():
			return false
		}

		if !ok {
			m.logf("%s disconnected during replay vote", m.name(from))
			return false
		}

		frame := protocol.Parse(line)
		switch {
		case frame.Tag == protocol.Chat:
			m.chat(from, frame.Payload)
		case frame.Tag == protocol.Leave:
			return false
		case voted[index(from)] || frame.Tag == "":
			// already answered
		case protocol.IsYes(line):
			voted[index(from)] = true
		default:
			m.logf("%s declined the rematch", m.name(from))
			return false
		}
	}

	return true
}

// report records, archives and publishes a finished game
func (m *Match) report(ctx context.Context, o Outcome) {
	m.setState("game_over")
	if o.Kind == Aborted {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if ra, rb, ok := o.Results(); ok && m.deps.Results != nil {
		for _, r := range []struct {
			player board.Cell
			result service.Result
		}{{board.PlayerA, ra}, {board.PlayerB, rb}} {
			if err := m.deps.Results.RecordResult(ctx, m.name(r.player), r.result); err != nil {
				m.logf("failed to record %s for %s: %v", r.result, m.name(r.player), err)
			}
		}
	}

	winner := ""
	if w := o.Winner(); w != board.Empty {
		winner = m.name(w)
	}

	if m.deps.Archive != nil {
		rec := history.Record{
			MatchID:    m.id,
			Game:       m.game,
			PlayerA:    m.name(board.PlayerA),
			PlayerB:    m.name(board.PlayerB),
			Result:     o.Kind.String(),
			Winner:     winner,
			Moves:      append([]int(nil), m.moves...),
			Board:      m.board.Serialize(),
			StartedAt:  m.gameStart,
			FinishedAt: time.Now(),
		}
		if err := m.deps.Archive.Save(ctx, rec); err != nil {
			m.logf("failed to archive game %d: %v", m.game, err)
		}
	}

	m.publish(service.Event{
		Type:   service.EventGameOver,
		Result: o.Kind.String(),
		Winner: winner,
	})
}

func (m *Match) release() {
	m.releaseOnce.Do(func() {
		for _, p := range m.players {
			p.Release()
		}
	})
}

func (m *Match) publish(e service.Event) {
	if m.deps.Events == nil {
		return
	}
	e.MatchID = m.id
	e.Players = []string{m.name(board.PlayerA), m.name(board.PlayerB)}
	e.Timestamp = time.Now()
	m.deps.Events.Publish(e)
}

func (m *Match) setState(state string) {
	m.state = state
	m.snapshot()
}

func (m *Match) snapshot() {
	toMove := ""
	if m.state == "playing" {
		toMove = m.name(m.turn)
	}
	m.info.Store(&service.MatchInfo{
		ID:        m.id,
		PlayerA:   m.name(board.PlayerA),
		PlayerB:   m.name(board.PlayerB),
		State:     m.state,
		ToMove:    toMove,
		Game:      m.game,
		Moves:     len(m.moves),
		Board:     m.board.Serialize(),
		StartedAt: m.startedAt,
	})
}

func (m *Match) player(c board.Cell) Player {
	return m.players[index(c)]
}

func (m *Match) name(c board.Cell) string {
	return m.player(c).Name()
}

func (m *Match) send(c board.Cell, line string) {
	m.player(c).Send(line)
}

// broadcast sends line to both players, Player 1 first
func (m *Match) broadcast(line string) {
	m.players[0].Send(line)
	m.players[1].Send(line)
}

func (m *Match) logf(format string, args ...any) {
	log.Printf("[Match %s] %s", shortID(m.id), fmt.Sprintf(format, args...))
}

func index(c board.Cell) int {
	if c == board.PlayerB {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
