package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neboloop/pilot/internal/logging"
)

// ErrNoFreePort is returned by Start when every probed port was taken.
var ErrNoFreePort = errors.New("no free port")

// TaskFunc runs one task on a connection. It is called from the
// connection's task lane, one task at a time, and must return once ctx is done.
type TaskFunc func(ctx context.Context, conn *Conn, task string)

// Options configure the relay listener and per-connection limits.
type Options struct {
	Host         string
	Port         int
	PortAttempts int

	TaskRatePerMinute int
	TaskBurst         int
	TaskQueue         int

	// Provider is reported by /status.
	Provider string
}

// Relay accepts extension connections and hands their tasks to a TaskFunc.
type Relay struct {
	opts   Options
	handle TaskFunc

	mu    sync.RWMutex
	conns map[string]*Conn
	port  int

	server   *http.Server
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopped bool
}

// NewRelay creates a relay. Call Start to listen, or mount Handler yourself.
func NewRelay(opts Options, handle TaskFunc) *Relay {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.PortAttempts <= 0 {
		opts.PortAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		opts:   opts,
		handle: handle,
		conns:  make(map[string]*Conn),
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Allow Chrome extensions
				if strings.HasPrefix(origin, "chrome-extension://") {
					return true
				}
				// Allow no origin (direct connections)
				return origin == ""
			},
		},
	}
}

// Handler returns the relay's routes.
func (r *Relay) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Get("/", r.HandleRoot)
	router.Head("/", r.HandleRoot)
	router.Get("/status", r.HandleStatus)
	return router
}

// Start binds the first free port starting at Options.Port, trying the next
// port on each bind conflict, and serves in the background.
func (r *Relay) Start() error {
	base := r.opts.Port
	var ln net.Listener
	for attempt := 0; attempt < r.opts.PortAttempts; attempt++ {
		port := base + attempt
		addr := net.JoinHostPort(r.opts.Host, strconv.Itoa(port))

		l, err := net.Listen("tcp", addr)
		if err == nil {
			ln = l
			break
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		logging.Warnf("[Relay] port %d in use, trying %d", port, port+1)
	}
	if ln == nil {
		return fmt.Errorf("%w in %d-%d", ErrNoFreePort, base, base+r.opts.PortAttempts-1)
	}

	r.mu.Lock()
	r.port = ln.Addr().(*net.TCPAddr).Port
	r.server = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := r.server
	r.mu.Unlock()

	logging.Infof("[Relay] listening on ws://%s", ln.Addr())

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[Relay] server error: %v", err)
		}
	}()
	return nil
}

// Port returns the bound port, or 0 before Start.
func (r *Relay) Port() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.port
}

// ConnectionCount returns the number of live extension connections.
func (r *Relay) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stop closes every connection, waits for their tasks to unwind, and shuts
// the listener down.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	server := r.server
	r.mu.Unlock()

	r.cancel()
	for _, c := range conns {
		c.Close()
	}

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// HTTP Handlers

// HandleRoot upgrades websocket requests and answers plain requests with OK.
func (r *Relay) HandleRoot(w http.ResponseWriter, req *http.Request) {
	if websocket.IsWebSocketUpgrade(req) {
		r.serveWS(w, req)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if req.Method != http.MethodHead {
		w.Write([]byte("OK"))
	}
}

// HandleStatus reports connection count, provider mode, and bound port.
func (r *Relay) HandleStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"connections": r.ConnectionCount(),
		"provider":    r.opts.Provider,
		"port":        r.Port(),
	})
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped {
		http.Error(w, "relay stopped", http.StatusServiceUnavailable)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logging.Debugf("[Relay] upgrade failed: %v", err)
		return
	}

	id := "conn-" + uuid.NewString()[:8]
	c := newConn(r.ctx, ws, id, r.opts)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		c.Close()
		return
	}
	r.conns[id] = c
	r.wg.Add(1)
	r.mu.Unlock()

	c.log.Infof("[Relay] extension connected from %s", req.RemoteAddr)

	defer func() {
		r.mu.Lock()
		delete(r.conns, id)
		r.mu.Unlock()
		r.wg.Done()
		c.log.Infof("[Relay] extension disconnected")
	}()

	c.serve(r.handle)
}
