package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/service"
)

// TokenIssuer signs the token returned with LOGIN_SUCCESS
type TokenIssuer interface {
	Issue(username string) (string, error)
}

// Gateway runs the connection handler for every transport
type Gateway struct {
	registry   *Registry
	store      service.Store
	tokens     TokenIssuer
	sendBuffer int
	wg         sync.WaitGroup
}

// NewGateway creates a gateway. tokens may be nil, in which case
// LOGIN_SUCCESS carries no payload.
func NewGateway(registry *Registry, store service.Store, tokens TokenIssuer, sendBuffer int) *Gateway {
	return &Gateway{
		registry:   registry,
		store:      store,
		tokens:     tokens,
		sendBuffer: sendBuffer,
	}
}

// Serve handles conn until the client disconnects or ctx is cancelled
func (g *Gateway) Serve(ctx context.Context, conn Conn) {
	g.wg.Add(1)
	defer g.wg.Done()

	s := New(conn, g.sendBuffer)
	h := &handler{gateway: g, session: s}

	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	log.Printf("[Handler %s] connected", s.Addr())
	h.run(ctx)
	h.cleanup()
}

// Wait blocks until every Serve call has returned
func (g *Gateway) Wait() {
	g.wg.Wait()
}

type handler struct {
	gateway *Gateway
	session *Session
}

func (h *handler) run(ctx context.Context) {
	if !h.authenticate(ctx) {
		return
	}
	h.lobby(ctx)
}

// authenticate accepts REGISTER and LOGIN until a login succeeds
func (h *handler) authenticate(ctx context.Context) bool {
	s := h.session

	for {
		line, err := s.Receive(0)
		if err != nil {
			return false
		}

		frame := protocol.Parse(line)
		switch frame.Tag {
		case "":
			continue

		case protocol.Register:
			h.register(ctx, frame.Payload)

		case protocol.Login:
			if h.login(ctx, frame.Payload) {
				return true
			}

		default:
			s.Send(protocol.Format(protocol.Error, protocol.NotLoggedIn))
		}
	}
}

func (h *handler) register(ctx context.Context, payload string) {
	s := h.session

	username, password, err := protocol.ParseCredentials(payload)
	if err != nil {
		s.Send(protocol.Format(protocol.RegisterError, "Usage: REGISTER:<username>:<password>"))
		return
	}

	err = h.gateway.store.Register(ctx, username, password)
	switch {
	case err == nil:
		log.Printf("[Handler %s] registered %s", s.Addr(), username)
		s.Send(protocol.RegisterSuccess)
	case errors.Is(err, service.ErrUserExists):
		s.Send(protocol.Format(protocol.RegisterError, "Username already taken"))
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrInvalidCredentials):
		s.Send(protocol.Format(protocol.RegisterError, "Invalid username or password"))
	default:
		log.Printf("[Handler %s] register %s failed: %v", s.Addr(), username, err)
		s.Send(protocol.Format(protocol.RegisterError, "Registration failed"))
	}
}

func (h *handler) login(ctx context.Context, payload string) bool {
	s := h.session

	username, password, err := protocol.ParseCredentials(payload)
	if err != nil {
		s.Send(protocol.Errorf("Usage: LOGIN:<username>:<password>"))
		return false
	}

	if err := h.gateway.store.Authenticate(ctx, username, password); err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			log.Printf("[Handler %s] login %s failed: %v", s.Addr(), username, err)
		}
		s.Send(protocol.Errorf("Login failed"))
		return false
	}

	if err := h.gateway.registry.Login(username, s); err != nil {
		s.Send(protocol.Errorf("User already logged in"))
		return false
	}

	token := ""
	if h.gateway.tokens != nil {
		if token, err = h.gateway.tokens.Issue(username); err != nil {
			log.Printf("[Handler %s] token for %s failed: %v", s.Addr(), username, err)
			token = ""
		}
	}

	s.SetState(InLobby)
	s.Send(protocol.Format(protocol.LoginSuccess, token))
	return true
}

// lobby serves lobby commands until the connection ends
func (h *handler) lobby(ctx context.Context) {
	s := h.session

	for {
		line, err := s.Receive(0)
		if err != nil {
			return
		}

		frame := protocol.Parse(line)
		switch frame.Tag {
		case "":
			continue

		case protocol.FriendListRequest:
			h.sendFriends(ctx)

		case protocol.StatsRequest:
			h.sendStats(ctx)

		case protocol.FriendAdd:
			h.addFriend(ctx, strings.TrimSpace(frame.Payload))

		case protocol.JoinQueue:
			if !h.playMatch(ctx) {
				return
			}

		default:
			s.Send(protocol.Format(protocol.Error, protocol.UnknownCommand))
		}
	}
}

func (h *handler) sendFriends(ctx context.Context) {
	s := h.session

	names, err := h.gateway.store.Friends(ctx, s.Name())
	if err != nil {
		log.Printf("[Handler %s] friends lookup failed: %v", s.Name(), err)
		s.Send(protocol.Errorf("Could not load friends"))
		return
	}

	friends := make([]protocol.Friend, 0, len(names))
	for _, name := range names {
		friends = append(friends, protocol.Friend{
			Username: name,
			Online:   h.gateway.registry.IsOnline(name),
		})
	}
	s.Send(protocol.Format(protocol.FriendListResponse, protocol.EncodeFriends(friends)))
}

func (h *handler) sendStats(ctx context.Context) {
	s := h.session

	stats, err := h.gateway.store.Stats(ctx, s.Name())
	if err != nil {
		log.Printf("[Handler %s] stats lookup failed: %v", s.Name(), err)
		s.Send(protocol.Errorf("Could not load stats"))
		return
	}
	s.Send(protocol.Format(protocol.StatsResponse, protocol.EncodeStats(stats.Wins, stats.Losses, stats.Draws)))
}

func (h *handler) addFriend(ctx context.Context, friend string) {
	s := h.session

	if friend == "" {
		s.Send(protocol.Format(protocol.FriendAddError, "Usage: FRIEND_ADD:<username>"))
		return
	}

	err := h.gateway.store.AddFriend(ctx, s.Name(), friend)
	switch {
	case err == nil:
		s.Send(protocol.Format(protocol.FriendAddSuccess, friend))
	case errors.Is(err, service.ErrUnknownUser):
		s.Send(protocol.Format(protocol.FriendAddError, "User does not exist"))
	case errors.Is(err, service.ErrSelfFriend):
		s.Send(protocol.Format(protocol.FriendAddError, "Cannot add yourself"))
	case errors.Is(err, service.ErrAlreadyFriends):
		s.Send(protocol.Format(protocol.FriendAddError, "Already friends"))
	default:
		log.Printf("[Handler %s] add friend %s failed: %v", s.Name(), friend, err)
		s.Send(protocol.Format(protocol.FriendAddError, "Could not add friend"))
	}
}

// playMatch queues the session and blocks until its match releases it.
// It returns false when the connection ended while waiting.
func (h *handler) playMatch(ctx context.Context) bool {
	s := h.session
	registry := h.gateway.registry

	s.SetState(Queued)
	// QUEUE_JOINED goes out before Enqueue so it always precedes GAME_START.
	s.Send(protocol.QueueJoined)
	if err := registry.Enqueue(s); err != nil {
		s.SetState(InLobby)
		s.Send(protocol.Errorf("%s", err.Error()))
		return true
	}

	select {
	case <-s.Released():
	case <-s.Done():
		if registry.Dequeue(s) {
			return false
		}
		// Already paired: the match notices the closed connection and
		// releases us.
		select {
		case <-s.Released():
		case <-ctx.Done():
		}
		return false
	case <-ctx.Done():
		registry.Dequeue(s)
		return false
	}

	s.SetState(InLobby)
	log.Printf("[Handler %s] back in lobby", s.Name())
	return true
}

func (h *handler) cleanup() {
	s := h.session
	h.gateway.registry.Dequeue(s)
	h.gateway.registry.LogoutSession(s)
	s.Close()
	log.Printf("[Handler %s] terminated", s.label())
}
