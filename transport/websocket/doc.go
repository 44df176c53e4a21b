// Package websocket provides the WebSocket transports of the Connect Four
// server.
//
// The websocket package implements:
//   - /ws/play: the line protocol carried one frame per text message, served
//     by the same connection handler as the TCP listener
//   - /ws/events: a read-only feed of lobby events encoded as JSON
//
// Architecture:
//
// Event subscribers are managed by a Hub using the hub-and-spoke model: the
// Hub goroutine owns the subscriber set and every client has a dedicated
// write pump. Publish never blocks the caller; when the hub is backed up the
// event is dropped, and a subscriber that cannot keep up is disconnected.
//
// Subscriptions:
//
// Subscribers receive every event by default. ?match=<id> narrows the feed
// to one match.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	registry.SetPublisher(hub)
//
//	router.HandleFunc("/ws/events", hub.ServeWS)
//	router.Handle("/ws/play", websocket.NewPlayHandler(ctx, gateway))
//
// Event Format:
//
//	{"type":"game_over","match_id":"...","players":["alice","bob"],
//	 "result":"win","winner":"alice","queued":0,"timestamp":"..."}
package websocket
