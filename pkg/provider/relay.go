package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pact-foundation/pact-go/pkg/httputil"
	"github.com/pact-foundation/pact-go/pkg/logging"
)

// stdEncoding is the single base64 codec StateRelay and handler.go's
// message-metadata decoder both use (§6.3's Pact-Message-Metadata header).
var stdEncoding = base64.StdEncoding

// StateRelay is a tiny HTTP listener (§4.7) that lets a remote, subprocess
// provider call back into the Verifier for state changes and message
// production. Its lifetime is bound to one verification run, shaped on the
// same raw net/http Start/Stop idiom as the consumer-side MockServer.
type StateRelay struct {
	host string
	log  *slog.Logger

	stateHandler   StateHandler
	messageHandler MessageHandler

	mu         sync.RWMutex
	running    bool
	listener   net.Listener
	httpServer *http.Server
}

// NewStateRelay builds a relay that dispatches to the given handlers.
func NewStateRelay(stateHandler StateHandler, messageHandler MessageHandler) *StateRelay {
	return &StateRelay{
		host:           "127.0.0.1",
		log:            logging.Nop(),
		stateHandler:   stateHandler,
		messageHandler: messageHandler,
	}
}

// WithLogger sets the relay's operational logger.
func (r *StateRelay) WithLogger(log *slog.Logger) *StateRelay {
	if log != nil {
		r.log = log
	}
	return r
}

// Start binds an ephemeral listener and begins serving.
func (r *StateRelay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("provider: state relay already running")
	}
	listener, err := net.Listen("tcp", r.host+":0")
	if err != nil {
		return fmt.Errorf("provider: binding state relay listener: %w", err)
	}
	r.listener = listener
	r.httpServer = &http.Server{Handler: http.HandlerFunc(r.serveHTTP)}
	r.running = true
	go func() {
		if err := r.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			r.log.Error("state relay: serve exited", "error", err)
		}
	}()
	return nil
}

// URL returns the relay's base URL (e.g. for wiring into a provider's own
// config as its state-change/message endpoints).
func (r *StateRelay) URL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.listener == nil {
		return ""
	}
	return "http://" + r.listener.Addr().String()
}

// Stop gracefully shuts the relay down within drainTimeout.
func (r *StateRelay) Stop(drainTimeout time.Duration) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	srv := r.httpServer
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (r *StateRelay) serveHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/_pact/state":
		r.handleState(w, req)
	case "/_pact/message":
		r.handleMessage(w, req)
	default:
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (r *StateRelay) handleState(w http.ResponseWriter, req *http.Request) {
	var body stateRequestBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := r.stateHandler.Invoke(req.Context(), http.DefaultClient, body.State, body.Action, body.Params); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	httputil.WriteNoContent(w)
}

func (r *StateRelay) handleMessage(w http.ResponseWriter, req *http.Request) {
	var body messageRequestBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	contents, err := r.messageHandler.Produce(req.Context(), http.DefaultClient, body.Description, body.Metadata)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if contents.ContentType != "" {
		w.Header().Set("Content-Type", contents.ContentType)
	}
	if len(contents.Metadata) > 0 {
		raw, err := json.Marshal(contents.Metadata)
		if err == nil {
			w.Header().Set("Pact-Message-Metadata", stdEncoding.EncodeToString(raw))
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(contents.Contents)
}
