package broker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/logging"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

func TestFetchPactsParsesHALLinksAndFetchesEachHref(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pacts/provider/orders-service/for-verification", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		var body forVerificationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.ConsumerVersionSelectors, 1)
		assert.True(t, body.ConsumerVersionSelectors[0].Latest)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"_links":{"pacts":[{"href":"` + "http://" + r.Host + `/pacts/one"}]}}`))
	})
	mux.HandleFunc("/pacts/one", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"consumer":{"name":"web"},"provider":{"name":"orders-service"},"interactions":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, Auth{})
	fetched, err := c.FetchPacts(t.Context(), "orders-service", VerificationSelectors{
		Consumers: []Selector{{Latest: true}},
	})
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	p, err := fetched[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "web", p.Consumer.Name)
}

func TestDoWithRetryRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Auth{})
	raw, err := c.doWithRetry(t.Context(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDoWithRetryDoesNotRetryOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Auth{})
	_, err := c.doWithRetry(t.Context(), http.MethodGet, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPublishVerificationResultSendsExpectedPayload(t *testing.T) {
	var gotPath string
	var gotBody VerificationResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, BasicAuth("user", "pass"))
	err := c.PublishVerificationResult(t.Context(), "orders-service", "web", "abc123", VerificationResultPayload{
		Success:                    true,
		ProviderApplicationVersion: "1.2.3",
	})
	require.NoError(t, err)
	assert.Equal(t, "/pacts/provider/orders-service/consumer/web/pact-version/abc123/verification-results", gotPath)
	assert.True(t, gotBody.Success)
	assert.Equal(t, "1.2.3", gotBody.ProviderApplicationVersion)
}

func TestPublishPactsPutsPactAndTagsBranch(t *testing.T) {
	var putPactPath string
	var tagPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/pacts/"):
			putPactPath = r.URL.Path
		case r.Method == http.MethodPut:
			tagPaths = append(tagPaths, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Auth{})
	p := pact.New("web", "orders-service")
	err := c.PublishPacts(t.Context(), []*pact.Pact{p}, "1.0.0", "main", []string{"prod"})
	require.NoError(t, err)

	assert.Equal(t, "/pacts/provider/orders-service/consumer/web/version/1.0.0", putPactPath)
	require.Len(t, tagPaths, 2)
	assert.Contains(t, tagPaths, "/pacticipants/web/versions/1.0.0/tags/main")
	assert.Contains(t, tagPaths, "/pacticipants/web/versions/1.0.0/tags/prod")
}

func TestNewClientWarnsOnExpiredBearerToken(t *testing.T) {
	// A JWT with exp far in the past (no signature verification needed here:
	// NewClient only inspects claims, it never validates a signature).
	expiredToken := "eyJhbGciOiJub25lIn0.eyJleHAiOjF9."
	var logBuf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelWarn, Output: &logBuf})
	c := NewClient("http://example.invalid", BearerAuth(expiredToken), WithLogger(log))
	require.NotNil(t, c)
	assert.Contains(t, logBuf.String(), "bearer token appears to already be expired")
}

func TestClientDefaultTimeoutIsSet(t *testing.T) {
	c := NewClient("http://example.invalid", Auth{})
	assert.True(t, c.httpClient.Timeout > 0)
	assert.True(t, c.httpClient.Timeout <= 30*time.Second)
}
