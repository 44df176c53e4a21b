// Command analyze prints quick, human-readable statistics about archived
// games: per-player records, game lengths, opening columns and how often the
// first player wins. Every game is replayed on a fresh board and checked
// against its stored final position.
//
// Games are read from a running server's /api/history endpoint or from a
// JSON file holding either that response or a bare array of games.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/connectfour/game/board"
	"github.com/wricardo/connectfour/game/history"
)

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "Summarize archived Connect Four games",
		ArgsUsage: "[games.json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Server base URL, used when no file is given",
				Sources: cli.EnvVars("C4_API_URL"),
			},
			&cli.IntFlag{Name: "limit", Value: 200, Usage: "Games to fetch from the server"},
			&cli.StringFlag{Name: "player", Usage: "Only games involving this player"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var (
				games []history.Record
				err   error
			)
			if path := cmd.Args().First(); path != "" {
				games, err = loadFile(path)
			} else {
				games, err = fetch(ctx, cmd.String("url"), cmd.String("player"), cmd.Int("limit"))
			}
			if err != nil {
				return err
			}

			report := Analyze(games)
			report.Print(os.Stdout)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func loadFile(path string) ([]history.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return decodeGames(data)
}

func fetch(ctx context.Context, baseURL, player string, limit int) ([]history.Record, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if player != "" {
		query.Set("player", player)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/history?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching history: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeGames(data)
}

// decodeGames accepts a /api/history response or a bare array
func decodeGames(data []byte) ([]history.Record, error) {
	var games []history.Record
	if err := json.Unmarshal(data, &games); err == nil {
		return games, nil
	}

	var resp struct {
		Games []history.Record `json:"games"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	return resp.Games, nil
}

// PlayerRecord is one player's results across the analyzed games
type PlayerRecord struct {
	Name      string
	Wins      int
	Losses    int
	Draws     int
	Abandoned int
}

// Report summarizes a set of archived games
type Report struct {
	Games          int
	Wins           int
	Draws          int
	Abandoned      int
	FirstPlayerWon int
	AverageMoves   float64
	Openings       [board.Cols]int
	Players        []PlayerRecord
	// Problems lists games whose moves do not reproduce their record
	Problems []string
}

// Analyze computes a Report
func Analyze(games []history.Record) Report {
	r := Report{Games: len(games)}
	players := map[string]*PlayerRecord{}
	player := func(name string) *PlayerRecord {
		if players[name] == nil {
			players[name] = &PlayerRecord{Name: name}
		}
		return players[name]
	}

	totalMoves := 0
	for _, g := range games {
		totalMoves += len(g.Moves)
		if len(g.Moves) > 0 && g.Moves[0] >= 0 && g.Moves[0] < board.Cols {
			r.Openings[g.Moves[0]]++
		}

		a, b := player(g.PlayerA), player(g.PlayerB)
		switch g.Result {
		case history.ResultWin, history.ResultAbandoned:
			if g.Result == history.ResultWin {
				r.Wins++
			} else {
				r.Abandoned++
				a.Abandoned++
				b.Abandoned++
			}
			if g.Winner == g.PlayerA {
				a.Wins++
				b.Losses++
				if g.Result == history.ResultWin {
					r.FirstPlayerWon++
				}
			} else {
				b.Wins++
				a.Losses++
			}
		case history.ResultDraw:
			r.Draws++
			a.Draws++
			b.Draws++
		}

		if problem := verify(g); problem != "" {
			r.Problems = append(r.Problems, fmt.Sprintf("%s game %d: %s", g.MatchID, g.Game, problem))
		}
	}

	if len(games) > 0 {
		r.AverageMoves = float64(totalMoves) / float64(len(games))
	}

	for _, p := range players {
		r.Players = append(r.Players, *p)
	}
	sort.Slice(r.Players, func(i, j int) bool {
		if r.Players[i].Wins != r.Players[j].Wins {
			return r.Players[i].Wins > r.Players[j].Wins
		}
		return r.Players[i].Name < r.Players[j].Name
	})
	return r
}

// verify replays a game and reports the first inconsistency, or ""
func verify(g history.Record) string {
	b := board.New()
	turn := board.PlayerA
	for i, col := range g.Moves {
		if b.Drop(col, turn) == board.Invalid {
			return fmt.Sprintf("move %d (column %d) is illegal", i+1, col)
		}
		if b.CheckWin(turn) && i != len(g.Moves)-1 {
			return fmt.Sprintf("game was already won after move %d", i+1)
		}
		turn = turn.Opponent()
	}

	if g.Board != "" && b.Serialize() != g.Board {
		return "replayed board differs from the stored board"
	}

	switch g.Result {
	case history.ResultWin:
		last := turn.Opponent()
		if len(g.Moves) == 0 || !b.CheckWin(last) {
			return "recorded as a win but no four in a row"
		}
	case history.ResultDraw:
		if !b.IsFull() {
			return "recorded as a draw but the board is not full"
		}
	}
	return ""
}

// Print writes the report
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\n=== Analyzed %d games ===\n", r.Games)
	if r.Games == 0 {
		return
	}

	fmt.Fprintf(w, "Wins: %d  Draws: %d  Abandoned: %d\n", r.Wins, r.Draws, r.Abandoned)
	fmt.Fprintf(w, "Average length: %.1f moves\n", r.AverageMoves)
	if r.Wins > 0 {
		fmt.Fprintf(w, "Player 1 won %d of %d decided games (%.0f%%)\n",
			r.FirstPlayerWon, r.Wins, 100*float64(r.FirstPlayerWon)/float64(r.Wins))
	}

	fmt.Fprintf(w, "\nOpening column:\n")
	for col, n := range r.Openings {
		fmt.Fprintf(w, "  %d: %d\n", col, n)
	}

	fmt.Fprintf(w, "\nPlayers:\n")
	for _, p := range r.Players {
		fmt.Fprintf(w, "  %-16s W %3d  L %3d  D %3d  abandoned %d\n", p.Name, p.Wins, p.Losses, p.Draws, p.Abandoned)
	}

	if len(r.Problems) > 0 {
		fmt.Fprintf(w, "\nWARNING: %d games do not replay cleanly\n", len(r.Problems))
		for i, p := range r.Problems {
			if i < 5 {
				fmt.Fprintf(w, "   %s\n", p)
			}
		}
		if len(r.Problems) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(r.Problems)-5)
		}
	} else {
		fmt.Fprintf(w, "\nAll games replay cleanly\n")
	}
}
