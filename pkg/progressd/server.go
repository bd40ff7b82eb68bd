// Package progressd publishes the process tracker to remote frontends
// over JSON-RPC, both as plain HTTP requests and over a websocket that
// receives progress notifications.
package progressd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/process"
)

var logger = log.GetLogger("progressd")

// DefaultInterval is the period of progress snapshot notifications.
const DefaultInterval = 250 * time.Millisecond

// Version is reported by server.info.
const Version = "0.1.0"

// Server pushes tracker events and snapshots to websocket clients.
type Server struct {
	tracker  *process.Tracker
	interval time.Duration

	httpServer *http.Server
	addr       string
	handler    http.Handler
	setupOnce  sync.Once

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*WSClient
	wsClientMu sync.RWMutex
	nextWSID   atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// Config holds server configuration.
type Config struct {
	// HTTP address to listen on (e.g., ":7125")
	Addr string

	// Tracker whose processes are published
	Tracker *process.Tracker

	// Snapshot notification period; DefaultInterval if zero
	Interval time.Duration
}

// New creates a progress server.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		tracker:   cfg.Tracker,
		interval:  cfg.Interval,
		addr:      cfg.Addr,
		wsClients: make(map[int64]*WSClient),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	s.httpServer = &http.Server{
		Addr: cfg.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Handler().ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler and starts the notification loops.
func (s *Server) Handler() http.Handler {
	s.setupOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
		mux.HandleFunc("/websocket", s.handleWebSocket)
		mux.HandleFunc("/server/info", s.handleServerInfo)
		mux.HandleFunc("/progress/list", s.handleProgressList)
		s.handler = s.corsMiddleware(mux)

		events, unsubscribe := s.tracker.Subscribe()
		go s.eventLoop(events, unsubscribe)
		go s.updateLoop()
	})
	return s.handler
}

// Start serves on the configured address until Stop is called. It returns
// nil at once if Stop already ran.
func (s *Server) Start() error {
	s.Handler()
	logger.Info("progress server starting on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes every client and the listener.
func (s *Server) Stop() error {
	s.cancel()

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.Close()
	}
	s.wsClients = make(map[int64]*WSClient)
	s.wsClientMu.Unlock()

	return s.httpServer.Close()
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	return len(s.wsClients)
}

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error")
		return
	}

	result, err := s.dispatchMethod(req.Method, req.Params)
	if err != nil {
		s.writeJSONRPCError(w, req.ID, -32000, err.Error())
		return
	}
	s.writeJSONRPCResult(w, req.ID, result)
}

func (s *Server) dispatchMethod(method string, params map[string]any) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo()
	case "progress.list":
		return s.methodProgressList()
	case "progress.close":
		return s.methodProgressClose(params)
	case "server.connection.identify":
		return s.methodIdentify(params)
	default:
		return nil, fmt.Errorf("method not found: %s", method)
	}
}

func (s *Server) methodServerInfo() (any, error) {
	hostname, _ := os.Hostname()
	return map[string]any{
		"version":         Version,
		"hostname":        hostname,
		"websocket_count": s.ClientCount(),
		"process_count":   s.tracker.Len(),
		"uptime":          time.Since(s.startTime).Seconds(),
	}, nil
}

func (s *Server) methodProgressList() (any, error) {
	return map[string]any{"processes": s.tracker.Snapshot()}, nil
}

func (s *Server) methodProgressClose(params map[string]any) (any, error) {
	kindName, _ := params["kind"].(string)
	name, ok := params["name"].(string)
	if kindName == "" || !ok {
		return nil, fmt.Errorf("missing 'kind' or 'name' parameter")
	}
	kind, ok := process.ParseKind(kindName)
	if !ok {
		return nil, fmt.Errorf("unknown kind: %s", kindName)
	}
	p, err := s.tracker.Get(kind, name)
	if err != nil {
		return nil, err
	}
	if !p.IsFinished() {
		return nil, fmt.Errorf("process %s/%s is not finished", kindName, name)
	}
	p.Close()
	return "ok", nil
}

func (s *Server) methodIdentify(params map[string]any) (any, error) {
	clientName, _ := params["client_name"].(string)
	logger.WithField("client", clientName).Debug("client identified")
	return map[string]any{"connection_id": s.nextWSID.Load()}, nil
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	result, _ := s.methodServerInfo()
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleProgressList(w http.ResponseWriter, r *http.Request) {
	result, _ := s.methodProgressList()
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JSON response helpers

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	s.writeJSON(w, jsonRPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	s.writeJSON(w, jsonRPCResponse{
		JSONRPC: "2.0",
		Error:   &jsonRPCError{Code: code, Message: message},
		ID:      id,
	})
}

// eventLoop forwards tracker registrations as notify_progress_added.
func (s *Server) eventLoop(events <-chan process.Event, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.broadcast(notification{
				JSONRPC: "2.0",
				Method:  "notify_progress_added",
				Params:  []any{map[string]any{"kind": ev.Kind.String(), "name": ev.Name}},
			})
		case <-s.ctx.Done():
			return
		}
	}
}

// updateLoop periodically pushes tracker snapshots.
func (s *Server) updateLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.ClientCount() == 0 || s.tracker.Len() == 0 {
				continue
			}
			eventtime := time.Since(s.startTime).Seconds()
			s.broadcast(notification{
				JSONRPC: "2.0",
				Method:  "notify_progress_update",
				Params:  []any{s.tracker.Snapshot(), eventtime},
			})
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(msg any) {
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	for _, client := range s.wsClients {
		client.Send(msg)
	}
}
