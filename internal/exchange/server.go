package exchange

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkdrop/internal/crypto"
	"linkdrop/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var ErrTokenMismatch = errors.New("payload token does not match session token")

const (
	SharePath = "/share"

	DefaultReadHeaderTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Handler receives each accepted payload. It runs on the request goroutine.
type Handler func(Payload)

type ServerOptions struct {
	// ListenHost is the address the listener binds. Empty means 0.0.0.0.
	ListenHost string
	// Port 0 picks an ephemeral port.
	Port                int
	PreferredInterfaces []string
	// ReadHeaderTimeout 0 disables the limit.
	ReadHeaderTimeout time.Duration
	// Interfaces overrides interface discovery.
	Interfaces func() ([]Interface, error)
}

// Server is one receive session. Token, handler and URL never change after
// NewServer returns.
type Server struct {
	token    string
	shareURL string
	handler  Handler
	listener net.Listener
	srv      *http.Server
}

// NewServer picks the advertised address, generates the session token and binds
// the listener. It does not serve until Start.
func NewServer(opts ServerOptions, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("exchange: nil handler")
	}
	discover := opts.Interfaces
	if discover == nil {
		discover = SystemInterfaces
	}
	preferred := opts.PreferredInterfaces
	if len(preferred) == 0 {
		preferred = DefaultPreferredInterfaces
	}

	candidates, err := discover()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	ip, err := pickAddress(candidates, preferred)
	if err != nil {
		return nil, err
	}

	host := opts.ListenHost
	if host == "" {
		host = "0.0.0.0"
	}
	ln, err := net.Listen("tcp4", net.JoinHostPort(host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	s := &Server{
		token:    NewToken(),
		shareURL: fmt.Sprintf("http://%s%s", net.JoinHostPort(ip.String(), strconv.Itoa(port)), SharePath),
		handler:  handler,
		listener: ln,
	}
	s.srv = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s, nil
}

// NewToken returns a random 32-character hex token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Server) Token() string { return s.token }

func (s *Server) URL() string { return s.shareURL }

// Code is what the peer needs to scan.
func (s *Server) Code() Code {
	return Code{URL: s.shareURL, Token: s.token}
}

// Start serves on a single background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Exchange server stopped: %v", err)
		}
	}()
	logger.Log.Infof("Listening for transfers on %s", s.shareURL)
}

// Stop closes the listener, whether or not Start ran. Requests already being
// handled run to completion unless ctx expires first.
func (s *Server) Stop(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// Routes is the HTTP surface of a session, exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(SharePath, s.handleShare)
	r.Post(SharePath+"/", s.handleShare)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		requestsTotal.WithLabelValues(resultNotFound).Inc()
		http.NotFound(w, r)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	return r
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			requestsTotal.WithLabelValues(resultError).Inc()
			logger.Log.Errorf("Exchange request panicked: %v", rec)
			panic(rec)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		s.reject(w, http.StatusBadRequest, resultBadRequest, "missing or unreadable body")
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data == "" {
		s.reject(w, http.StatusBadRequest, resultBadRequest, "body is not an envelope")
		return
	}

	plain, err := crypto.Decrypt(env.Data, s.token)
	if err != nil {
		s.reject(w, http.StatusForbidden, resultRejected, err.Error())
		return
	}

	p, err := unmarshalPayload(plain)
	if err != nil {
		s.reject(w, http.StatusBadRequest, resultBadRequest, err.Error())
		return
	}

	// The token is checked before the content so a foreign sender always sees 403.
	if subtle.ConstantTimeCompare([]byte(p.Token), []byte(s.token)) != 1 {
		s.reject(w, http.StatusForbidden, resultRejected, ErrTokenMismatch.Error())
		return
	}
	if err := p.validate(); err != nil {
		s.reject(w, http.StatusBadRequest, resultBadRequest, err.Error())
		return
	}

	s.handler(p)

	requestsTotal.WithLabelValues(resultAccepted).Inc()
	logger.Log.Infof("Received %s %q from %q", p.Type, p.Name, p.DeviceName)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) reject(w http.ResponseWriter, status int, result, reason string) {
	requestsTotal.WithLabelValues(result).Inc()
	logger.Log.Warnf("Rejected exchange request (%d): %s", status, reason)
	http.Error(w, http.StatusText(status), status)
}
