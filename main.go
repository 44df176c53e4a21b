// Command connectfour starts the Connect Four server.
//
// It supports two modes:
//  1. "serve" (default) – runs the TCP game listener and the HTTP server exposing
//     the REST API, the WebSocket transports and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server that proxies to a running server's REST API
//
// Settings come from built-in defaults, an optional JSON file (--config) and
// flags, which fall back to C4_* environment variables. A .env file in the
// working directory is loaded first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/connectfour/api"
	"github.com/wricardo/connectfour/auth"
	"github.com/wricardo/connectfour/config"
	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/match"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	"github.com/wricardo/connectfour/game/store"
	"github.com/wricardo/connectfour/transport/mcp"
	"github.com/wricardo/connectfour/transport/tcp"
	"github.com/wricardo/connectfour/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Connect Four Server"
)

const (
	// archiveCapacity bounds the in-memory game archive
	archiveCapacity = 1000

	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

// newCommand builds the CLI. serve is also the root action; its flags are
// declared on the root so every subcommand inherits them.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "connectfour",
		Usage:   AppName,
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the TCP game server and the HTTP API",
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server against a running server's REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "Base URL of the REST API",
						Sources: cli.EnvVars("C4_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:  "check-config",
				Usage: "Validate the configuration and print the effective settings",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return printConfig(os.Stdout, cfg)
				},
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "JSON configuration file", Sources: cli.EnvVars("C4_CONFIG")},
		&cli.StringFlag{Name: "tcp-addr", Usage: "TCP game listener address", Sources: cli.EnvVars("C4_TCP_ADDR")},
		&cli.StringFlag{Name: "http-addr", Usage: "HTTP API address", Sources: cli.EnvVars("C4_HTTP_ADDR")},
		&cli.IntFlag{Name: "max-conns", Usage: "Maximum concurrent TCP clients (0 = unlimited)", Sources: cli.EnvVars("C4_MAX_CONNS")},
		&cli.StringFlag{Name: "store-driver", Usage: "Account store: memory, file, sqlite3, mysql or postgres", Sources: cli.EnvVars("C4_STORE_DRIVER")},
		&cli.StringFlag{Name: "store-dsn", Usage: "Data source name for SQL stores", Sources: cli.EnvVars("C4_STORE_DSN")},
		&cli.StringFlag{Name: "data-dir", Usage: "Directory for the file and sqlite3 stores", Sources: cli.EnvVars("C4_DATA_DIR")},
		&cli.StringFlag{Name: "mongo-uri", Usage: "MongoDB URI for the game archive (empty = in memory)", Sources: cli.EnvVars("C4_MONGO_URI")},
		&cli.StringFlag{Name: "mongo-db", Usage: "MongoDB database name", Sources: cli.EnvVars("C4_MONGO_DB")},
		&cli.StringFlag{Name: "jwt-secret", Usage: "Secret for login tokens (empty = random per process)", Sources: cli.EnvVars("C4_JWT_SECRET")},
		&cli.DurationFlag{Name: "jwt-ttl", Usage: "Login token lifetime", Sources: cli.EnvVars("C4_JWT_TTL")},
		&cli.IntFlag{Name: "send-buffer", Usage: "Outbound frames buffered per client", Sources: cli.EnvVars("C4_SEND_BUFFER")},
		&cli.DurationFlag{Name: "replay-timeout", Usage: "Replay vote deadline (0 = wait indefinitely)", Sources: cli.EnvVars("C4_REPLAY_TIMEOUT")},
		&cli.BoolFlag{Name: "ngrok", Usage: "Expose the HTTP server through an ngrok tunnel", Sources: cli.EnvVars("C4_NGROK", "NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("C4_DEBUG")},
	}
}

// loadConfig layers the config file and explicitly set flags over the
// defaults
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	stringFlags := map[string]*string{
		"tcp-addr":     &cfg.TCPAddr,
		"http-addr":    &cfg.HTTPAddr,
		"store-driver": &cfg.StoreDriver,
		"store-dsn":    &cfg.StoreDSN,
		"data-dir":     &cfg.DataDir,
		"mongo-uri":    &cfg.MongoURI,
		"mongo-db":     &cfg.MongoDB,
		"jwt-secret":   &cfg.JWTSecret,
		"ngrok-domain": &cfg.NgrokDomain,
	}
	for name, dst := range stringFlags {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}

	if cmd.IsSet("max-conns") {
		cfg.MaxConns = cmd.Int("max-conns")
	}
	if cmd.IsSet("send-buffer") {
		cfg.SendBuffer = cmd.Int("send-buffer")
	}
	if cmd.IsSet("jwt-ttl") {
		cfg.JWTTTL = config.Duration(cmd.Duration("jwt-ttl"))
	}
	if cmd.IsSet("replay-timeout") {
		cfg.ReplayTimeout = config.Duration(cmd.Duration("replay-timeout"))
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok = cmd.Bool("ngrok")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printConfig writes cfg as indented JSON with secrets masked
func printConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	if masked.JWTSecret != "" {
		masked.JWTSecret = "********"
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(masked)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	log.Printf("Starting %s v%s", AppName, Version)

	svc, err := initializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	tcpLn, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.TCPAddr, err)
	}
	httpLn, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		tcpLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}

	var tunnel tunnelFunc
	if cfg.Ngrok {
		tunnel = ngrokTunnel(cmd.String("ngrok-auth"), cfg.NgrokDomain)
	}

	return serve(ctx, cfg, svc, tcpLn, httpLn, tunnel)
}

// services holds everything that outlives a single connection
type services struct {
	store    service.Store
	archive  history.Archive
	issuer   *auth.Issuer
	hub      *websocket.Hub
	matches  *match.Manager
	registry *session.Registry
	gateway  *session.Gateway
	game     service.GameService
}

// initializeServices opens persistence and wires the registry, the match
// manager and the connection gateway. Matches end when ctx is cancelled.
func initializeServices(ctx context.Context, cfg *config.Config) (*services, error) {
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	archive, err := openArchive(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL.Std())
	if err != nil {
		st.Close()
		archive.Close(context.Background())
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	if cfg.JWTSecret == "" {
		log.Println("Warning: no jwt_secret configured, login tokens will not survive a restart")
	}

	hub := websocket.NewHub()
	matches := match.NewManager(ctx, match.Deps{
		Results:       st,
		Archive:       archive,
		Events:        hub,
		ReplayTimeout: cfg.ReplayTimeout.Std(),
	})
	registry := session.NewRegistry(func(a, b *session.Session) { matches.Play(a, b) })
	registry.SetPublisher(hub)

	return &services{
		store:    st,
		archive:  archive,
		issuer:   issuer,
		hub:      hub,
		matches:  matches,
		registry: registry,
		gateway:  session.NewGateway(registry, st, issuer, cfg.SendBuffer),
		game:     service.NewGameService(registry, matches, st, archive),
	}, nil
}

func openArchive(ctx context.Context, cfg *config.Config) (history.Archive, error) {
	if cfg.MongoURI == "" {
		log.Printf("Game archive: in memory (last %d games)", archiveCapacity)
		return history.NewMemoryArchive(archiveCapacity), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	archive, err := history.NewMongoArchive(connectCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open game archive: %w", err)
	}
	log.Printf("Game archive: MongoDB database %s", cfg.MongoDB)
	return archive, nil
}

// Close waits for connections and matches to finish, then releases
// persistence
func (s *services) Close() {
	s.gateway.Wait()
	s.matches.Wait()

	if err := s.store.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.archive.Close(ctx); err != nil {
		log.Printf("Error closing archive: %v", err)
	}
}

// tunnelFunc serves handler on a public listener until ctx is cancelled
type tunnelFunc func(ctx context.Context, handler http.Handler) error

// serve runs the hub, the TCP game listener, the HTTP server and the
// optional tunnel until ctx is cancelled or one of them fails
func serve(ctx context.Context, cfg *config.Config, svc *services, tcpLn, httpLn net.Listener, tunnel tunnelFunc) error {
	g, gctx := errgroup.WithContext(ctx)

	apiServer := api.NewServer(svc.game, svc.hub, websocket.NewPlayHandler(gctx, svc.gateway), svc.issuer)
	apiServer.Handle("/mcp", mcp.NewClient(loopbackURL(httpLn.Addr())))

	httpServer := &http.Server{
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		svc.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return tcp.NewServer(cfg.TCPAddr, svc.gateway, cfg.MaxConns).Serve(gctx, tcpLn)
	})

	g.Go(func() error {
		addr := httpLn.Addr().String()
		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws/play, ws://%s/ws/events", addr, addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	if tunnel != nil {
		g.Go(func() error {
			if err := tunnel(gctx, apiServer); err != nil {
				// The tunnel is optional; losing it does not stop the server
				log.Printf("Ngrok tunnel error: %v", err)
			}
			return nil
		})
	}

	err := g.Wait()
	log.Println("Server stopped")
	return err
}

// ngrokTunnel exposes the HTTP handler on a public ngrok endpoint
func ngrokTunnel(authToken, domain string) tunnelFunc {
	return func(ctx context.Context, handler http.Handler) error {
		if authToken == "" {
			return errors.New("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		}

		log.Println("Starting ngrok tunnel...")

		var endpoint ngrokConfig.Tunnel
		if domain != "" {
			endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
			log.Printf("Using custom ngrok domain: %s", domain)
		} else {
			endpoint = ngrokConfig.HTTPEndpoint()
		}

		tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(authToken))
		if err != nil {
			return fmt.Errorf("failed to start ngrok tunnel: %w", err)
		}

		url := tun.URL()
		log.Printf("Ngrok tunnel established: %s", url)
		log.Printf("  REST API (ngrok): %s/api", url)
		log.Printf("  WebSocket (ngrok): %s/ws/play", url)

		tunnelServer := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		stop := context.AfterFunc(ctx, func() { tunnelServer.Close() })
		defer stop()

		if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
			return err
		}
		log.Println("Ngrok tunnel closed")
		return nil
	}
}

// loopbackURL is the base URL the in-process MCP endpoint uses to reach the
// REST API
func loopbackURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runStdioMCP runs an MCP stdio server against a running server's REST API
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := cmd.String("api-url")

	// stdout carries the MCP stream; logs stay on stderr
	log.SetOutput(os.Stderr)
	log.Printf("Checking for API server at %s...", baseURL)

	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(baseURL + "/api/health")
	if err != nil {
		log.Printf("Warning: API server not reachable (%v); tools will fail until it is up", err)
	} else {
		resp.Body.Close()
		log.Printf("API server found at %s", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Println("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
