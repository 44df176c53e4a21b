package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Authentication
const (
	Login           = "LOGIN"
	LoginSuccess    = "LOGIN_SUCCESS"
	Register        = "REGISTER"
	RegisterSuccess = "REGISTER_SUCCESS"
	RegisterError   = "REGISTER_ERROR"
	Error           = "ERROR"
)

// Matchmaking
const (
	JoinQueue   = "JOIN_QUEUE"
	QueueJoined = "QUEUE_JOINED"
)

// Game flow
const (
	GameStart = "GAME_START"
	YourTurn  = "YOUR_TURN"
	Status    = "STATUS"
	Move      = "MOVE"
	Board     = "BOARD"
	Chat      = "CHAT"
	GameOver  = "GAMEOVER"
	End       = "END"
	Leave     = "LEAVE"
)

// Friends and stats
const (
	FriendListRequest  = "FRIEND_LIST_REQUEST"
	FriendListResponse = "FRIEND_LIST_RESPONSE"
	FriendAdd          = "FRIEND_ADD"
	FriendAddSuccess   = "FRIEND_ADD_SUCCESS"
	FriendAddError     = "FRIEND_ADD_ERROR"
	StatsRequest       = "STATS_REQUEST"
	StatsResponse      = "STATS_RESPONSE"
)

// Fixed texts shared by the server and clients
const (
	ReplayPrompt        = "Play again? (yes/no)"
	ReplayYes           = "yes"
	ReplayNo            = "no"
	WaitingForOpponent  = "Waiting for opponent's move..."
	OpponentLeft        = "Opponent disconnected."
	ReplayDeclined      = "One player declined replay. Session ending."
	DrawResult          = "Draw!"
	NotLoggedIn         = "Please register or login first"
	UnknownCommand      = "Unknown command"
	UnrecognizedCommand = "Unrecognized command."
	InvalidMoveFormat   = "Invalid move format."
	InvalidMove         = "Invalid move."
	NotYourTurn         = "Not your turn."
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrBadColumn      = errors.New("column is not a number")
	ErrBadStats       = errors.New("malformed stats payload")
)

// Frame is one parsed protocol line
type Frame struct {
	Tag     string
	Payload string
}

// String re-encodes the frame
func (f Frame) String() string {
	return Format(f.Tag, f.Payload)
}

// Parse splits a line into tag and payload. Surrounding whitespace and a
// trailing carriage return are removed; the tag is upper-cased so clients
// may send "move:3".
func Parse(line string) Frame {
	line = strings.TrimSpace(line)
	tag, payload, _ := strings.Cut(line, ":")
	return Frame{
		Tag:     strings.ToUpper(strings.TrimSpace(tag)),
		Payload: payload,
	}
}

// Format builds a frame line without the trailing newline
func Format(tag, payload string) string {
	if payload == "" {
		return tag
	}
	return tag + ":" + payload
}

// Errorf formats an ERROR frame
func Errorf(format string, args ...any) string {
	return Format(Error, fmt.Sprintf(format, args...))
}

// ParseColumn parses the payload of a MOVE frame. Range checking is left to
// the board so an out-of-range number is reported as an illegal move.
func ParseColumn(payload string) (int, error) {
	col, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadColumn, payload)
	}
	return col, nil
}

// ParseCredentials splits "user:pass". The password may contain ':'.
func ParseCredentials(payload string) (username, password string, err error) {
	username, password, ok := strings.Cut(payload, ":")
	username = strings.TrimSpace(username)
	if !ok || username == "" || password == "" {
		return "", "", fmt.Errorf("%w: expected user:password", ErrMalformedFrame)
	}
	return username, password, nil
}

// IsYes reports whether a replay answer accepts the rematch
func IsYes(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), ReplayYes)
}

// Friend is one entry of a FRIEND_LIST_RESPONSE
type Friend struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// EncodeFriends builds the "user,on;other,off" payload
func EncodeFriends(friends []Friend) string {
	parts := make([]string, 0, len(friends))
	for _, f := range friends {
		state := "off"
		if f.Online {
			state = "on"
		}
		parts = append(parts, f.Username+","+state)
	}
	return strings.Join(parts, ";")
}

// DecodeFriends parses a FRIEND_LIST_RESPONSE payload. Entries without a
// state are treated as offline.
func DecodeFriends(payload string) []Friend {
	if strings.TrimSpace(payload) == "" {
		return nil
	}

	var friends []Friend
	for _, entry := range strings.Split(payload, ";") {
		name, state, _ := strings.Cut(entry, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		friends = append(friends, Friend{Username: name, Online: strings.TrimSpace(state) == "on"})
	}
	return friends
}

// EncodeStats builds the "wins,losses,draws" payload
func EncodeStats(wins, losses, draws int) string {
	return fmt.Sprintf("%d,%d,%d", wins, losses, draws)
}

// DecodeStats parses a STATS_RESPONSE payload
func DecodeStats(payload string) (wins, losses, draws int, err error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadStats, payload)
	}

	values := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil || v < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadStats, payload)
		}
		values[i] = v
	}
	return values[0], values[1], values[2], nil
}
