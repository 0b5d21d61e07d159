package consumer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pact-foundation/pact-go/pkg/generate"
	"github.com/pact-foundation/pact-go/pkg/httputil"
	"github.com/pact-foundation/pact-go/pkg/logging"
	"github.com/pact-foundation/pact-go/pkg/match"
	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

// defaultDrainTimeout is the grace period Stop waits for in-flight
// requests to finish before forcibly closing the listener (§4.5).
const defaultDrainTimeout = 5 * time.Second

// ServerOption configures a MockServer at construction time.
type ServerOption func(*MockServer)

// WithLogger sets the operational logger for the mock server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *MockServer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHost overrides the loopback host the mock server binds to. The port
// is always ephemeral (§4.5: "bound to an ephemeral port").
func WithHost(host string) ServerOption {
	return func(s *MockServer) { s.host = host }
}

// WithDrainTimeout overrides the grace period Stop waits for in-flight
// requests before forcibly closing the listener.
func WithDrainTimeout(d time.Duration) ServerOption {
	return func(s *MockServer) { s.drainTimeout = d }
}

// WithSeed fixes the PRNG seed used by the GenEngine for this session, for
// reproducible example generation (§4.2's determinism requirement).
func WithSeed(seed uint64) ServerOption {
	return func(s *MockServer) { s.seed = seed; s.seedSet = true }
}

// interactionState tracks how many times one expected interaction has been
// matched during the current session.
type interactionState struct {
	exp          *Expectation
	matchedCount int
}

// MockStatus is returned by Stop: the interactions matched at least once,
// those never matched (MissingRequest), the served requests that matched
// nothing (UnexpectedRequest), and the full ordered mismatch list (§4.5).
type MockStatus struct {
	Matched    []string
	Unmatched  []string
	Extra      []*pact.Request
	Mismatches []match.Mismatch
}

// MockServer is the embedded HTTP server of §4.5: Arm freezes the expected
// interactions, Serve answers a consumer's real HTTP client, and Drain
// (performed by Stop) reports what happened.
type MockServer struct {
	host         string
	drainTimeout time.Duration
	log          *slog.Logger
	seed         uint64
	seedSet      bool

	mu         sync.RWMutex
	running    bool
	listener   net.Listener
	httpServer *http.Server
	genCtx     *generate.Context
	lastStatus *MockStatus

	idxMu        sync.Mutex
	interactions []*interactionState
	extra        []*pact.Request
	mismatches   []match.Mismatch
}

// NewMockServer builds a MockServer bound to 127.0.0.1 by default.
func NewMockServer(opts ...ServerOption) *MockServer {
	s := &MockServer{
		host:         "127.0.0.1",
		drainTimeout: defaultDrainTimeout,
		log:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.seedSet {
		s.seed = randomSeed()
	}
	return s
}

// Arm freezes expectations into the server's lookup structure. It must be
// called before Start, and may not be called while the server is running
// (§4.5 phase 1, §3.2: "once the MockServer is started... the interaction
// list is frozen").
func (s *MockServer) Arm(expectations []*Expectation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("consumer: cannot Arm a MockServer while it is running")
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.interactions = nil
	for _, e := range expectations {
		if e.Type != pact.TypeSynchronousHTTP {
			// Message interactions are not served over HTTP; the
			// consumer test invokes its message handler directly.
			continue
		}
		s.interactions = append(s.interactions, &interactionState{exp: e})
	}
	s.extra = nil
	s.mismatches = nil
	s.lastStatus = nil
	return nil
}

// Start binds the listener and begins serving. Returns an error if already
// running.
func (s *MockServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("consumer: MockServer already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:0", s.host))
	if err != nil {
		return fmt.Errorf("consumer: binding mock server listener: %w", err)
	}
	s.listener = listener
	s.genCtx = generate.NewContext(s.seed, s.urlLocked(), nil)
	s.httpServer = &http.Server{Handler: http.HandlerFunc(s.serveHTTP)}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("mock server error", "error", err)
		}
	}()

	s.running = true
	s.log.Info("mock server started", "url", s.urlLocked())
	return nil
}

// URL returns the mock server's base URL, valid once Start has returned.
func (s *MockServer) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.urlLocked()
}

func (s *MockServer) urlLocked() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// IsRunning reports whether the server is currently serving requests.
func (s *MockServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stop drains the server (§4.5 phase 3): it is idempotent, waits up to the
// configured drain timeout for in-flight requests, then reports the
// session's MockStatus. Calling Stop again after the server has already
// stopped returns the same status.
func (s *MockServer) Stop() (*MockStatus, error) {
	s.mu.Lock()
	if !s.running {
		status := s.lastStatus
		s.mu.Unlock()
		if status == nil {
			status = &MockStatus{}
		}
		return status, nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(ctx)

	status := s.computeStatus()
	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()

	if shutdownErr != nil {
		return status, fmt.Errorf("consumer: draining mock server: %w", shutdownErr)
	}
	return status, nil
}

func (s *MockServer) computeStatus() *MockStatus {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	status := &MockStatus{}
	for _, is := range s.interactions {
		if is.matchedCount > 0 {
			status.Matched = append(status.Matched, is.exp.Description)
			continue
		}
		status.Unmatched = append(status.Unmatched, is.exp.Description)
		status.Mismatches = append(status.Mismatches, match.Mismatch{
			Kind:    match.MissingRequest,
			Message: fmt.Sprintf("interaction %q was never matched", is.exp.Description),
		})
	}
	status.Extra = append(status.Extra, s.extra...)
	status.Mismatches = append(status.Mismatches, s.mismatches...)
	return status
}

// serveHTTP implements the request-matching half of §4.5 phase 2: find a
// single expected interaction whose request the actual request satisfies
// under the MatchEngine, reply with its response, or record an
// UnexpectedRequest and reply 500 per §6.2.
func (s *MockServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	actual, err := buildActualRequest(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	chosen, available := s.claimInteraction(actual)
	if chosen == nil {
		s.log.Warn("unexpected request", "method", actual.Method, "path", actual.Path)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":     "Unexpected request",
			"method":    actual.Method,
			"path":      actual.Path,
			"available": available,
		})
		return
	}

	resp := chosen.exp.Response
	body, err := renderResponseBody(s.genCtx, resp.Body, resp.Generators)
	if err != nil {
		s.log.Error("rendering response body", "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	headers, err := renderResponseHeaders(s.genCtx, resp.Headers, resp.Generators)
	if err != nil {
		s.log.Error("rendering response headers", "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	for name, values := range headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if body != nil && len(body.Bytes) > 0 {
		_, _ = w.Write(body.Bytes)
	}
}

// claimInteraction locks the interaction index (§5: "request-to-interaction
// matching is linearisable via a mutex on the interaction index"), picks
// the first not-yet-consumed interaction whose request matches, and
// records the outcome either way.
func (s *MockServer) claimInteraction(actual *pact.Request) (*interactionState, []string) {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	for _, is := range s.interactions {
		if is.matchedCount > 0 && !is.exp.Repeatable {
			continue
		}
		if len(match.MatchRequest(is.exp.Request, actual)) == 0 {
			is.matchedCount++
			return is, nil
		}
	}

	var available []string
	for _, is := range s.interactions {
		if is.matchedCount > 0 && !is.exp.Repeatable {
			continue
		}
		available = append(available, fmt.Sprintf("%s %s", is.exp.Request.Method, is.exp.Request.Path))
	}
	s.extra = append(s.extra, actual)
	s.mismatches = append(s.mismatches, match.Mismatch{
		Kind:     match.UnexpectedRequest,
		Selector: actual.Path,
		Message:  fmt.Sprintf("unexpected request: %s %s", actual.Method, actual.Path),
	})
	return nil, available
}

func buildActualRequest(r *http.Request) (*pact.Request, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	req := &pact.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   map[string][]string(r.URL.Query()),
		Headers: map[string][]string(r.Header),
	}
	if len(raw) > 0 {
		ct := r.Header.Get("Content-Type")
		body := &pact.Body{ContentType: ct, Bytes: raw}
		if strings.Contains(strings.ToLower(ct), "json") {
			_ = json.Unmarshal(raw, &body.Content)
		}
		req.Body = body
	}
	return req, nil
}

// renderResponseBody applies any body generators (selectors starting with
// "$") to a JSON response body's content and re-encodes it to bytes.
func renderResponseBody(ctx *generate.Context, body *pact.Body, gens matchers.GeneratorTree) (*pact.Body, error) {
	if body == nil || len(gens) == 0 || !strings.Contains(strings.ToLower(body.ContentType), "json") {
		return body, nil
	}
	bodyGens := matchers.GeneratorTree{}
	for selector, g := range gens {
		if strings.HasPrefix(selector, "$") {
			bodyGens[selector] = g
		}
	}
	if len(bodyGens) == 0 {
		return body, nil
	}
	content, err := generate.ApplyToJSON(ctx, body.Content, bodyGens)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &pact.Body{ContentType: body.ContentType, Content: content, Bytes: raw}, nil
}

// renderResponseHeaders applies any header generators (selectors that are
// bare header names, not JSON-path selectors) to the response headers.
func renderResponseHeaders(ctx *generate.Context, headers map[string][]string, gens matchers.GeneratorTree) (map[string][]string, error) {
	if len(gens) == 0 {
		return headers, nil
	}
	out := make(map[string][]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	for selector, g := range gens {
		if strings.HasPrefix(selector, "$") {
			continue
		}
		val, err := generate.Generate(ctx, g)
		if err != nil {
			return nil, err
		}
		out[selector] = []string{fmt.Sprint(val)}
	}
	return out, nil
}

func randomSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
