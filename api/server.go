package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wricardo/connectfour/auth"
	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/transport/websocket"
)

// maxHistoryLimit caps ?limit= on /api/history
const maxHistoryLimit = 200

// TokenVerifier validates bearer tokens issued at login
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	play    http.Handler
	tokens  TokenVerifier
	router  *mux.Router
}

// NewServer creates a new API server. hub, play and tokens are optional;
// the matching routes are only mounted when they are set.
func NewServer(gameService service.GameService, hub *websocket.Hub, play http.Handler, tokens TokenVerifier) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		play:    play,
		tokens:  tokens,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Lobby
	api.HandleFunc("/online", s.handleOnline).Methods("GET")
	api.HandleFunc("/queue", s.handleQueue).Methods("GET")

	// Matches
	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	// Players
	api.HandleFunc("/players/{name}/stats", s.handlePlayerStats).Methods("GET")
	api.HandleFunc("/me", s.handleMe).Methods("GET")

	// WebSocket
	if s.hub != nil {
		s.router.HandleFunc("/ws/events", s.hub.ServeWS)
	}
	if s.play != nil {
		s.router.Handle("/ws/play", s.play)
	}
}

// Handle mounts an extra handler, used for the MCP endpoint
func (s *Server) Handle(path string, handler http.Handler) {
	s.router.PathPrefix(path).Handler(handler)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// Lobby Handlers

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	players, err := s.service.OnlinePlayers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(players),
		"players": nonNil(players),
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queued, err := s.service.Queue(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(queued),
		"players": nonNil(queued),
	})
}

// Match Handlers

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.ActiveMatches(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []service.MatchInfo{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	matches, err := s.service.ActiveMatches(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, m := range matches {
		if m.ID == matchID {
			respondJSON(w, http.StatusOK, m)
			return
		}
	}

	respondError(w, http.StatusNotFound, "match not found: "+matchID)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	player := strings.TrimSpace(query.Get("player"))

	limit := history.DefaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	games, err := s.service.RecentGames(r.Context(), player, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []history.Record{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(games),
		"limit":  limit,
		"player": player,
		"games":  games,
	})
}

// Player Handlers

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	s.respondPlayerStats(w, r, mux.Vars(r)["name"])
}

// handleMe returns the stats of the player named by the bearer token
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		respondError(w, http.StatusNotImplemented, "token authentication is disabled")
		return
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	s.respondPlayerStats(w, r, claims.Username)
}

func (s *Server) respondPlayerStats(w http.ResponseWriter, r *http.Request, username string) {
	stats, err := s.service.PlayerStats(r.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
