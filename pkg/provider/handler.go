package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/pact"
	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

// StateAction names the phase of a provider-state handler invocation.
type StateAction string

const (
	ActionSetup    StateAction = "setup"
	ActionTeardown StateAction = "teardown"
)

// HandlerKind discriminates the StateHandler tagged union of §9's redesign
// note: dispatch is by explicit tag, never by reflecting on a function's
// signature.
type HandlerKind int

const (
	// HandlerFunc0 takes only the state's parameters.
	HandlerFunc0 HandlerKind = iota
	// HandlerFunc1 additionally receives the state name.
	HandlerFunc1
	// HandlerFunc2 additionally receives the setup/teardown action.
	HandlerFunc2
	// HandlerURL relays the call to an HTTP endpoint (§4.6, §6.3).
	HandlerURL
)

// StateFunc0 is a state handler that only needs the state's parameters.
type StateFunc0 func(ctx context.Context, params map[string]any) error

// StateFunc1 is a state handler that also needs the state's name.
type StateFunc1 func(ctx context.Context, state string, params map[string]any) error

// StateFunc2 is a state handler that also distinguishes setup from
// teardown.
type StateFunc2 func(ctx context.Context, state string, action StateAction, params map[string]any) error

// StateHandler is the tagged union of ways a provider state can be
// satisfied: an in-process function at one of three signatures, or a URL
// the Verifier calls per §4.6 ("POST JSON body or GET with query params,
// per the body flag").
type StateHandler struct {
	Kind     HandlerKind
	Func0    StateFunc0
	Func1    StateFunc1
	Func2    StateFunc2
	URL      string
	BodyMode bool // true: POST JSON body; false: GET with query parameters
}

// StateHandlerFunc0 builds a StateHandler around a parameters-only function.
func StateHandlerFunc0(fn StateFunc0) StateHandler {
	return StateHandler{Kind: HandlerFunc0, Func0: fn}
}

// StateHandlerFunc1 builds a StateHandler around a state-and-parameters
// function.
func StateHandlerFunc1(fn StateFunc1) StateHandler {
	return StateHandler{Kind: HandlerFunc1, Func1: fn}
}

// StateHandlerFunc2 builds a StateHandler around a full
// state/action/parameters function.
func StateHandlerFunc2(fn StateFunc2) StateHandler {
	return StateHandler{Kind: HandlerFunc2, Func2: fn}
}

// StateHandlerURL builds a StateHandler that POSTs (bodyMode=true) or GETs
// (bodyMode=false) a remote provider-states-setup endpoint.
func StateHandlerURL(url string, bodyMode bool) StateHandler {
	return StateHandler{Kind: HandlerURL, URL: url, BodyMode: bodyMode}
}

// IsZero reports whether no handler was configured.
func (h StateHandler) IsZero() bool {
	return h.Kind == HandlerFunc0 && h.Func0 == nil && h.URL == ""
}

type stateRequestBody struct {
	State  string         `json:"state"`
	Action StateAction    `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Invoke runs the handler for one provider-state transition. A non-nil
// error is always wrapped as a *pacterr.HandlerError (§7: "treated as a
// mismatch for the interaction; teardown is still attempted").
func (h StateHandler) Invoke(ctx context.Context, client *http.Client, state string, action StateAction, params map[string]any) error {
	var err error
	switch h.Kind {
	case HandlerFunc0:
		if h.Func0 != nil {
			err = h.Func0(ctx, params)
		}
	case HandlerFunc1:
		if h.Func1 != nil {
			err = h.Func1(ctx, state, params)
		}
	case HandlerFunc2:
		if h.Func2 != nil {
			err = h.Func2(ctx, state, action, params)
		}
	case HandlerURL:
		err = invokeStateURL(ctx, client, h.URL, h.BodyMode, state, action, params)
	default:
		err = fmt.Errorf("provider: unknown state handler kind %d", h.Kind)
	}
	if err != nil {
		return pacterr.NewHandlerError(state, err)
	}
	return nil
}

func invokeStateURL(ctx context.Context, client *http.Client, target string, bodyMode bool, state string, action StateAction, params map[string]any) error {
	var req *http.Request
	var err error

	if bodyMode {
		body, marshalErr := json.Marshal(stateRequestBody{State: state, Action: action, Params: params})
		if marshalErr != nil {
			return fmt.Errorf("encoding state change body: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		u, parseErr := url.Parse(target)
		if parseErr != nil {
			return fmt.Errorf("parsing state change URL %q: %w", target, parseErr)
		}
		q := u.Query()
		q.Set("state", state)
		q.Set("action", string(action))
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling state change endpoint %s: %w", target, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("state change endpoint %s returned %d: %s", target, resp.StatusCode, raw)
	}
	return nil
}

// MessageProducer returns the actual contents and metadata a provider
// produces for a message interaction, given its description and the
// expected metadata recorded in the pact.
type MessageProducer func(ctx context.Context, description string, metadata map[string]any) (*pact.MessageContents, error)

// MessageHandler is the tagged union for obtaining a message's actual
// contents from the provider: an in-process producer function, or a URL
// the provider exposes for message production (§4.6, §6.3).
type MessageHandler struct {
	Kind HandlerKind // HandlerFunc0 or HandlerURL
	Func MessageProducer
	URL  string
}

// MessageHandlerFunc builds a MessageHandler around an in-process producer.
func MessageHandlerFunc(fn MessageProducer) MessageHandler {
	return MessageHandler{Kind: HandlerFunc0, Func: fn}
}

// MessageHandlerURL builds a MessageHandler that POSTs
// {description, metadata} to a provider-owned message endpoint and parses
// the response per §6.3: body = message bytes, Content-Type = message
// content type, Pact-Message-Metadata = base64(JSON metadata).
func MessageHandlerURL(url string) MessageHandler {
	return MessageHandler{Kind: HandlerURL, URL: url}
}

// IsZero reports whether no handler was configured.
func (h MessageHandler) IsZero() bool {
	return h.Kind == HandlerFunc0 && h.Func == nil && h.URL == ""
}

type messageRequestBody struct {
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Produce obtains the actual message contents for description.
func (h MessageHandler) Produce(ctx context.Context, client *http.Client, description string, metadata map[string]any) (*pact.MessageContents, error) {
	switch h.Kind {
	case HandlerFunc0:
		if h.Func == nil {
			return nil, fmt.Errorf("provider: no message handler configured for %q", description)
		}
		return h.Func(ctx, description, metadata)
	case HandlerURL:
		return produceMessageURL(ctx, client, h.URL, description, metadata)
	default:
		return nil, fmt.Errorf("provider: unknown message handler kind %d", h.Kind)
	}
}

func produceMessageURL(ctx context.Context, client *http.Client, target, description string, metadata map[string]any) (*pact.MessageContents, error) {
	body, err := json.Marshal(messageRequestBody{Description: description, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("encoding message request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling message endpoint %s: %w", target, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading message response from %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("message endpoint %s returned %d: %s", target, resp.StatusCode, raw)
	}

	contents := &pact.MessageContents{
		Contents:    raw,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if meta := resp.Header.Get("Pact-Message-Metadata"); meta != "" {
		decoded, decodeErr := decodeMessageMetadataHeader(meta)
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding Pact-Message-Metadata from %s: %w", target, decodeErr)
		}
		contents.Metadata = decoded
	}
	return contents, nil
}

func decodeMessageMetadataHeader(encoded string) (map[string]any, error) {
	raw, err := base64StdDecode(encoded)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// base64StdDecode is split out so relay.go's encoder and this decoder agree
// on exactly one encoding (standard, padded) without importing
// encoding/base64 redundantly across files.
func base64StdDecode(s string) ([]byte, error) {
	return stdEncoding.DecodeString(strings.TrimSpace(s))
}
