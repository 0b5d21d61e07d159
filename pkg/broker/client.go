package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pact-foundation/pact-go/pkg/logging"
	"github.com/pact-foundation/pact-go/pkg/pact"
	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

// maxAttempts is the retry budget for 5xx/network errors (§4.8: "3
// attempts with exponential backoff on 5xx/network errors; no retry on
// 4xx").
const maxAttempts = 3

// AuthKind discriminates how a Client authenticates to the broker.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// Auth carries the broker credentials: Basic or Bearer (§4.8, §6.5).
type Auth struct {
	Kind     AuthKind
	Username string
	Password string
	Token    string
}

// BasicAuth builds HTTP Basic credentials.
func BasicAuth(username, password string) Auth {
	return Auth{Kind: AuthBasic, Username: username, Password: password}
}

// BearerAuth builds a Bearer token credential.
func BearerAuth(token string) Auth {
	return Auth{Kind: AuthBearer, Token: token}
}

// Selector is one consumer-version selector entry (§3.1, §6.4's
// `--consumer-version-selector`): latest, a branch, a tag, or a tag with a
// fallback when no version carries it.
type Selector struct {
	Tag         string `json:"tag,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Latest      bool   `json:"latest,omitempty"`
	FallbackTag string `json:"fallbackTag,omitempty"`
}

// VerificationSelectors is the full selector set for FetchPacts: one or
// more consumer-version selectors, plus the pending/WIP flags of §6.4.
type VerificationSelectors struct {
	Consumers      []Selector
	IncludePending bool
	WIPSince       string // RFC3339 date; "" disables wip-since filtering
}

// FetchedPact is one pact retrieved from the broker's "for verification"
// endpoint: its self-URL (used later to publish verification results
// against the same pact version) and its raw JSON bytes.
type FetchedPact struct {
	URL   string
	Bytes []byte
}

// Decode parses the fetched pact's JSON into a *pact.Pact.
func (f FetchedPact) Decode() (*pact.Pact, error) {
	return pact.Decode(f.Bytes)
}

// VerificationResultPayload is the standard broker result envelope posted
// to the verification-results endpoint (§6.5).
type VerificationResultPayload struct {
	Success                    bool              `json:"success"`
	ProviderApplicationVersion string            `json:"providerApplicationVersion"`
	Branch                     string            `json:"branch,omitempty"`
	Tags                       []string          `json:"buildTags,omitempty"`
	TestResults                []TestResultEntry `json:"testResults,omitempty"`
}

// TestResultEntry records one interaction's verification outcome, mirroring
// the Verifier's own InteractionResult at a granularity the broker accepts.
type TestResultEntry struct {
	InteractionID string   `json:"interactionId,omitempty"`
	Success       bool     `json:"success"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// Client is a minimal Pact Broker HTTP client.
type Client struct {
	baseURL    string
	auth       Auth
	httpClient *http.Client
	log        *slog.Logger
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient overrides the client's HTTP transport (e.g. for a custom
// timeout or TLS configuration).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client's operational logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient builds a broker client rooted at baseURL. If auth is a Bearer
// token, it is inspected once up front (without verifying its signature —
// the broker server, not this client, is the source of truth) so an
// already-expired token surfaces a clear warning instead of a confusing
// 401 chain of retries.
func NewClient(baseURL string, auth Auth, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.warnIfBearerExpired()
	return c
}

func (c *Client) warnIfBearerExpired() {
	if c.auth.Kind != AuthBearer || c.auth.Token == "" {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.auth.Token, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && time.Now().After(exp.Time) {
		c.log.Warn("broker: bearer token appears to already be expired", "expired_at", exp.Time)
	}
}

func (c *Client) applyAuth(req *http.Request) {
	switch c.auth.Kind {
	case AuthBasic:
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	}
}

// doWithRetry sends one HTTP request, making up to maxAttempts attempts
// with exponential backoff on network errors or 5xx responses. 4xx
// responses are returned immediately as a SourceError.
func (c *Client) doWithRetry(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	backoff := 200 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, pacterr.NewConfigError("broker: building request", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = pacterr.NewTransportError(target, err)
			c.log.Warn("broker: request failed, retrying", "url", target, "attempt", attempt, "error", err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = pacterr.NewTransportError(target, readErr)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = pacterr.NewTransportError(target, fmt.Errorf("status %d: %s", resp.StatusCode, raw))
			c.log.Warn("broker: server error, retrying", "url", target, "status", resp.StatusCode, "attempt", attempt)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, pacterr.NewSourceError(target, fmt.Errorf("status %d: %s", resp.StatusCode, raw))
		}
		return raw, nil
	}
	return nil, lastErr
}

type forVerificationRequest struct {
	ConsumerVersionSelectors []Selector `json:"consumerVersionSelectors,omitempty"`
	IncludePending           bool       `json:"includePending,omitempty"`
	IncludeWipPactsSince     string     `json:"includeWipPactsSince,omitempty"`
}

type forVerificationResponse struct {
	Links struct {
		Pacts []struct {
			Href string `json:"href"`
		} `json:"pacts"`
	} `json:"_links"`
}

// FetchPacts implements the broker's "pacts for verification" endpoint
// (§4.8, §6.5): one request listing every pact version to verify, then one
// GET per returned href to retrieve its bytes.
func (c *Client) FetchPacts(ctx context.Context, provider string, selectors VerificationSelectors) ([]FetchedPact, error) {
	reqBody, err := json.Marshal(forVerificationRequest{
		ConsumerVersionSelectors: selectors.Consumers,
		IncludePending:           selectors.IncludePending,
		IncludeWipPactsSince:     selectors.WIPSince,
	})
	if err != nil {
		return nil, pacterr.NewConfigError("broker: encoding selectors", err)
	}

	target := fmt.Sprintf("%s/pacts/provider/%s/for-verification", c.baseURL, url.PathEscape(provider))
	raw, err := c.doWithRetry(ctx, http.MethodGet, target, reqBody)
	if err != nil {
		return nil, err
	}

	var listing forVerificationResponse
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, pacterr.NewSourceError(target, fmt.Errorf("decoding for-verification response: %w", err))
	}

	out := make([]FetchedPact, 0, len(listing.Links.Pacts))
	for _, link := range listing.Links.Pacts {
		pactBytes, err := c.doWithRetry(ctx, http.MethodGet, link.Href, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, FetchedPact{URL: link.Href, Bytes: pactBytes})
	}
	return out, nil
}

// PublishVerificationResult posts a verification outcome for one pact
// version (§4.8, §6.5).
func (c *Client) PublishVerificationResult(ctx context.Context, provider, consumer, pactVersionHash string, result VerificationResultPayload) error {
	target := fmt.Sprintf("%s/pacts/provider/%s/consumer/%s/pact-version/%s/verification-results",
		c.baseURL, url.PathEscape(provider), url.PathEscape(consumer), url.PathEscape(pactVersionHash))
	body, err := json.Marshal(result)
	if err != nil {
		return pacterr.NewConfigError("broker: encoding verification result", err)
	}
	_, err = c.doWithRetry(ctx, http.MethodPost, target, body)
	return err
}

// PublishPacts uploads each pact's current content for the given consumer
// version, then tags that consumer version with branch (if set) and every
// entry in tags. Uploads are idempotent: PUT-ing the same pact
// content at the same version is a no-op on the broker side.
func (c *Client) PublishPacts(ctx context.Context, pacts []*pact.Pact, version, branch string, tags []string) error {
	for _, p := range pacts {
		raw, err := pact.Encode(p)
		if err != nil {
			return pacterr.NewConfigError(fmt.Sprintf("broker: encoding pact %s/%s", p.Consumer.Name, p.Provider.Name), err)
		}
		target := fmt.Sprintf("%s/pacts/provider/%s/consumer/%s/version/%s",
			c.baseURL, url.PathEscape(p.Provider.Name), url.PathEscape(p.Consumer.Name), url.PathEscape(version))
		if _, err := c.doWithRetry(ctx, http.MethodPut, target, raw); err != nil {
			return fmt.Errorf("broker: publishing pact %s/%s: %w", p.Consumer.Name, p.Provider.Name, err)
		}

		allTags := tags
		if branch != "" {
			allTags = append([]string{branch}, tags...)
		}
		for _, tag := range allTags {
			if err := c.tagVersion(ctx, p.Consumer.Name, version, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) tagVersion(ctx context.Context, consumer, version, tag string) error {
	target := fmt.Sprintf("%s/pacticipants/%s/versions/%s/tags/%s",
		c.baseURL, url.PathEscape(consumer), url.PathEscape(version), url.PathEscape(tag))
	_, err := c.doWithRetry(ctx, http.MethodPut, target, nil)
	if err != nil {
		return fmt.Errorf("broker: tagging %s version %s with %q: %w", consumer, version, tag, err)
	}
	return nil
}
