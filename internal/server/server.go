// Package server exposes the transfer form, the wallet session and the
// receive card to the browser page over HTTP and WebSocket.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/balance"
	"xdc-transfer/internal/database"
	"xdc-transfer/internal/form"
	"xdc-transfer/internal/health"
	"xdc-transfer/internal/metrics"
	"xdc-transfer/internal/models"
	"xdc-transfer/internal/session"
)

//go:embed static/index.html
var staticFS embed.FS

// SessionSource is the connected wallet session.
type SessionSource interface {
	Current() session.Session
	Account() (common.Address, bool)
}

// BalanceReader renders the balance of an account.
type BalanceReader interface {
	Read(ctx context.Context, account common.Address) (balance.Display, error)
}

// ReceiveCard renders and copies the connected address.
type ReceiveCard interface {
	QR(address string) ([]byte, error)
	Copy(address string) error
}

// HistoryFunc lists stored transfers sent from address.
type HistoryFunc func(address string, limit, offset int) ([]database.Transfer, error)

// Server wires the HTTP surface to the form controller and the wallet
// collaborators.
type Server struct {
	form     *form.Controller
	session  SessionSource
	balances BalanceReader
	receive  ReceiveCard
	history  HistoryFunc
	chain    models.ChainInfo
	logger   *zerolog.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
	http     *http.Server
}

type Options struct {
	Form     *form.Controller
	Session  SessionSource
	Balances BalanceReader
	Receive  ReceiveCard
	// History is nil when the database is disabled.
	History HistoryFunc
	Chain   models.ChainInfo
	Logger  *zerolog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{
		form:     opts.Form,
		session:  opts.Session,
		balances: opts.Balances,
		receive:  opts.Receive,
		history:  opts.History,
		chain:    opts.Chain,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/healthz", health.LivenessHandler).Methods("GET")
	r.HandleFunc("/readyz", health.ReadinessHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.recoverMiddleware(s.handleSession)).Methods("GET")
	api.HandleFunc("/balance", s.recoverMiddleware(s.handleBalance)).Methods("GET")
	api.HandleFunc("/receive/qr.png", s.recoverMiddleware(s.handleQR)).Methods("GET")
	api.HandleFunc("/receive/copy", s.recoverMiddleware(s.handleCopy)).Methods("POST")
	api.HandleFunc("/form", s.recoverMiddleware(s.handleForm)).Methods("GET")
	api.HandleFunc("/form/destination", s.recoverMiddleware(s.handleEditDestination)).Methods("PUT")
	api.HandleFunc("/form/amount", s.recoverMiddleware(s.handleEditAmount)).Methods("PUT")
	api.HandleFunc("/form/scanner/close", s.recoverMiddleware(s.handleCloseScanner)).Methods("POST")
	api.HandleFunc("/form/submit", s.recoverMiddleware(s.handleSubmit)).Methods("POST")
	api.HandleFunc("/transfers", s.recoverMiddleware(s.handleTransfers)).Methods("GET")

	r.HandleFunc("/ws/scan", s.handleScanSocket).Methods("GET")
	r.HandleFunc("/ws/form", s.handleFormSocket).Methods("GET")

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// recoverMiddleware turns a handler panic into a 500 JSON response.
func (s *Server) recoverMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().
					Str("error", fmt.Sprintf("%v", err)).
					Str("path", r.URL.Path).
					Str("stack", string(debug.Stack())).
					Msg("Handler panic recovered")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		handler(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

var errNotConnected = errors.New("wallet not connected")
