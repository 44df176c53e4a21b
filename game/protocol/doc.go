// Package protocol defines the newline-delimited text frames exchanged with
// Connect Four clients.
//
// Every frame is a single line of the form TAG or TAG:payload. The tag is
// everything before the first ':'; the payload may itself contain ':'
// characters (LOGIN:user:pass, CHAT:alice: hi).
//
// Frame Families:
//
//   - Authentication: LOGIN, REGISTER and their replies
//   - Lobby: JOIN_QUEUE, FRIEND_LIST_REQUEST, FRIEND_ADD, STATS_REQUEST
//   - Match: GAME_START, YOUR_TURN, STATUS, MOVE, BOARD, CHAT, GAMEOVER, END, LEAVE
//
// Usage:
//
//	f := protocol.Parse("MOVE:3")
//	if f.Tag == protocol.Move {
//		col, err := protocol.ParseColumn(f.Payload)
//		...
//	}
//	line := protocol.Format(protocol.Board, b.Serialize())
//
// Payload Codecs:
//
// FRIEND_LIST_RESPONSE carries "user,on;other,off" and STATS_RESPONSE carries
// "wins,losses,draws". EncodeFriends/DecodeFriends and
// EncodeStats/DecodeStats convert between those payloads and Go values.
package protocol
