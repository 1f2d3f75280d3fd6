package sync

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fatrack/internal/logging"
)

// maxPayload bounds request bodies; a full history file stays well under it.
const maxPayload = 16 << 20

// Server is the receiving end of the channel: it listens for counter
// snapshots and history transfers from a companion, writes the lockfile that
// lets the companion find it, and removes the lockfile on close.
type Server struct {
	addr         string
	lockfilePath string
	channel      *Channel
	logger       logging.Logger

	secret   string
	listener net.Listener
	httpSrv  *http.Server
}

func NewServer(addr, lockfilePath string, channel *Channel, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Server{
		addr:         addr,
		lockfilePath: lockfilePath,
		channel:      channel,
		logger:       logger,
		secret:       uuid.NewString(),
	}
}

// Start binds the listener, writes the lockfile and serves in the
// background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	port := listener.Addr().(*net.TCPAddr).Port
	lock := fmt.Sprintf("%d|%d|%s", port, os.Getpid(), s.secret)
	if err := os.WriteFile(s.lockfilePath, []byte(lock), 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(counterPath, s.handleCounters)
	mux.HandleFunc(historyPath, s.handleHistory)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("sync listener stopped", "error", err)
		}
	}()

	s.logger.Info("sync listener started", "port", port, "lockfile", s.lockfilePath)
	return nil
}

// Port returns the bound port. Valid after Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close stops the listener and removes the lockfile.
func (s *Server) Close() error {
	if err := os.Remove(s.lockfilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove lockfile", "error", err)
	}
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get(secretHeader) == s.secret
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	// Malformed payloads are a transport-level non-event: the channel skips
	// unusable fields and the sender gets a 200 either way.
	s.channel.HandleCounters(body)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	dir := filepath.Dir(s.channel.store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		http.Error(w, "stage failed", http.StatusInternalServerError)
		return
	}
	tmp, err := os.CreateTemp(dir, ".transfer-*.json")
	if err != nil {
		http.Error(w, "stage failed", http.StatusInternalServerError)
		return
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, io.LimitReader(r.Body, maxPayload)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		http.Error(w, "transfer failed", http.StatusBadRequest)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		http.Error(w, "transfer failed", http.StatusInternalServerError)
		return
	}

	s.channel.HandleHistoryFile(tmpName)
	w.WriteHeader(http.StatusOK)
}
