// Package dashboard serves a local web page that mirrors the status sink
// and lets the user switch format mode.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"dictate/formatter"
	"dictate/inject"
	"dictate/log"
	"dictate/status"
)

//go:embed static/*
var staticFiles embed.FS

const maxMessageBytes = 4096

// ModeController owns the format mode.
type ModeController interface {
	Mode() formatter.Mode
	SetMode(formatter.Mode) error
}

type Server struct {
	sink    *status.Sink
	modes   ModeController
	metrics http.Handler
	copy    func(string) error

	hub      *hub
	unsub    func()
	upgrader websocket.Upgrader
	srv      *http.Server
}

// New subscribes to sink. metrics may be nil.
func New(sink *status.Sink, modes ModeController, metrics http.Handler) *Server {
	s := &Server{
		sink:    sink,
		modes:   modes,
		metrics: metrics,
		copy:    inject.Copy,
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHost,
		},
	}
	s.unsub = sink.Subscribe(s.hub)
	return s
}

// sameHost accepts browsers on the dashboard's own origin and non-browser
// clients that send no Origin header.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/ws", s.handleWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/mode", s.handleMode)
		r.Post("/copy-last", s.handleCopyLast)
	})

	static, _ := fs.Sub(staticFiles, "static")
	r.Handle("/*", http.FileServer(http.FS(static)))
	return r
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	log.Info("dashboard: http://" + ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.hub.closeAll()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close unsubscribes from the sink and drops every client.
func (s *Server) Close() {
	s.unsub()
	s.hub.closeAll()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sink.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) setMode(raw string) error {
	m, err := formatter.ParseMode(raw)
	if err != nil {
		return err
	}
	return s.modes.SetMode(m)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.setMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.modes.Mode())})
}

func (s *Server) handleCopyLast(w http.ResponseWriter, _ *http.Request) {
	rec, ok := s.sink.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no transcripts yet")
		return
	}
	if err := s.copy(rec.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// clientMessage is what the page sends over the socket.
type clientMessage struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	c := s.hub.register(conn, s.sink.Snapshot)
	defer s.hub.unregister(c)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "set_mode":
			if err := s.setMode(msg.Mode); err != nil {
				log.Warnf("dashboard set_mode: %v", err)
			}
		default:
			log.Warnf("dashboard: unknown message type %q", msg.Type)
		}
	}
}
