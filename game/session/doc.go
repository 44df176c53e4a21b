// Package session manages client connections from login to match hand-off.
//
// The session package implements:
//   - Session: one connection with its own read and write goroutines
//   - Registry: the online set and the FIFO waiting queue
//   - Gateway: the per-connection handler shared by the TCP and WebSocket
//     transports
//
// Connection Lifecycle:
//
//	Authenticating -> InLobby -> (Queued -> InMatch -> InLobby)* -> Closed
//
// While Authenticating only REGISTER and LOGIN are accepted. In the lobby a
// client may ask for its friends or stats, add a friend or JOIN_QUEUE. After
// joining the queue the handler stops reading: the match that pairs the
// session consumes its lines until it calls Release, then the handler resumes
// the lobby loop.
//
// Pairing:
//
// Enqueue appends to the queue and, while two or more sessions are waiting,
// removes the two oldest and passes them to the StartFunc on a new
// goroutine. Sessions whose connection already closed are dropped instead of
// paired.
//
// Usage:
//
//	registry := session.NewRegistry(func(a, b *session.Session) {
//		matches.Play(a, b)
//	})
//	gateway := session.NewGateway(registry, store, issuer, 64)
//
//	conn, _ := listener.Accept()
//	go gateway.Serve(ctx, session.NewNetConn(conn))
//
// Concurrency:
//
// Registry methods are safe for concurrent use and are atomic with respect
// to each other. Session.Send never blocks; a client whose send buffer fills
// up is disconnected.
package session
