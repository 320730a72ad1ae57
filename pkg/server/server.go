// Package server exposes the interactions endpoint Discord calls, plus the
// command registration trigger and liveness routes.
package server

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/small-frappuccino/ctfchannels/pkg/discord/commands"
	"github.com/small-frappuccino/ctfchannels/pkg/discord/interactions"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second

	msgBadSignature = "Bad request signature."
	msgUnknownType  = "Unknown Type"
)

// Dispatcher turns a verified interaction into the response Discord expects.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *interactions.Payload) (*discordgo.InteractionResponse, error)
}

// Registrar publishes the slash command descriptors.
type Registrar interface {
	RegisterCommands(ctx context.Context, appID string, cmds []*discordgo.ApplicationCommand) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	ApplicationID     string
	PublicKey         ed25519.PublicKey
}

// Server is the HTTP surface of the service.
type Server struct {
	opts       Options
	dispatcher Dispatcher
	registrar  Registrar
	router     *chi.Mux
	httpServer *http.Server
	listener   net.Listener
}

// New wires the router. registrar may be nil, in which case /api/register
// answers 503.
func New(opts Options, dispatcher Dispatcher, registrar Registrar) *Server {
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		opts:       opts,
		dispatcher: dispatcher,
		registrar:  registrar,
	}
	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              strings.TrimSpace(opts.Addr),
		Handler:           s.router,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Get("/api", s.handleGreeting)
	r.Post("/api", s.handleInteraction)
	r.Post("/api/interactions", s.handleInteraction)
	r.Get("/api/register", s.handleRegister)

	s.router = r
}

// Start binds the listening socket and serves in the background.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	addr := s.httpServer.Addr
	if addr == "" {
		return errors.New("server address is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind interactions server: %w", err)
	}
	s.listener = ln

	log.ApplicationLogger().Info("Interactions server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ApplicationLogger().Error("Interactions server stopped unexpectedly", "err", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown interactions server: %w", err)
	}

	log.ApplicationLogger().Info("Interactions server stopped", "addr", s.httpServer.Addr)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleGreeting(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "👋 %s", s.opts.ApplicationID)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	body, ok := interactions.VerifyRequest(r, s.opts.PublicKey)
	if !ok {
		log.DiscordLogger().Warn("Rejected interaction with invalid signature", "remote_addr", r.RemoteAddr)
		writeText(w, http.StatusUnauthorized, msgBadSignature)
		return
	}

	payload, err := interactions.Decode(body)
	if err != nil {
		log.DiscordLogger().Warn("Undecodable interaction body", "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgUnknownType})
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), payload)
	if err != nil {
		if errors.Is(err, commands.ErrUnknownCommand) || errors.Is(err, commands.ErrUnknownInteraction) {
			log.DiscordLogger().Warn("Unhandled interaction", "err", err, "type", int(payload.Type), "command", payload.CommandName())
		} else {
			log.ErrorLoggerRaw().Error("Dispatch failed", "err", err)
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgUnknownType})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil {
		writeText(w, http.StatusServiceUnavailable, "command registration unavailable")
		return
	}

	out, err := s.registrar.RegisterCommands(r.Context(), s.opts.ApplicationID, commands.Descriptors())
	if err != nil {
		log.ErrorLoggerRaw().Error("Error registering commands", "err", err)
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorLoggerRaw().Error("Failed to encode response", "err", err)
	}
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
