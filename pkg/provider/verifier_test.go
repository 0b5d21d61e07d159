package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

func writeTempPact(t *testing.T, p *pact.Pact) string {
	t.Helper()
	raw, err := pact.Encode(p)
	require.NoError(t, err)
	dir := t.TempDir()
	path := filepath.Join(dir, "pact.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func buildUserPact(t *testing.T) *pact.Pact {
	t.Helper()
	p := pact.New("web", "users-service")
	p.Append(pact.Interaction{
		Type:        pact.TypeSynchronousHTTP,
		Description: "a request for a user",
		ProviderStates: []pact.ProviderState{
			{Name: "user 123 exists", Parameters: map[string]any{"id": float64(123)}},
		},
		Request: &pact.Request{Method: "GET", Path: "/users/123"},
		Response: &pact.Response{
			Status:  200,
			Headers: map[string][]string{"Content-Type": {"application/json"}},
			Body: &pact.Body{
				ContentType: "application/json",
				Content:     map[string]any{"id": float64(123), "name": "Alice"},
			},
			Rules: matchers.MatchingRules{
				matchers.CategoryBody: matchers.RuleTree{
					"$.name": matchers.And(matchers.Type()),
				},
			},
		},
	})
	require.NoError(t, p.Validate())
	return p
}

func TestVerifierHappyPath(t *testing.T) {
	var setupCalls, teardownCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 123, "name": "Alice"})
	}))
	defer srv.Close()

	pactPath := writeTempPact(t, buildUserPact(t))

	v := NewVerifier("users-service").
		WithHTTPTransport(srv.URL, "").
		WithPactFile(pactPath).
		WithStateHandler(StateHandlerFunc2(func(ctx context.Context, state string, action StateAction, params map[string]any) error {
			if action == ActionSetup {
				setupCalls++
			} else {
				teardownCalls++
			}
			return nil
		}))

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusPass, report.Results[0].Status)
	assert.Empty(t, report.Results[0].Mismatches)
	assert.Equal(t, 1, setupCalls)
	assert.Equal(t, 1, teardownCalls)
}

func TestVerifierDetectsMismatchAndReturnsVerificationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 123, "name": 999})
	}))
	defer srv.Close()

	pactPath := writeTempPact(t, buildUserPact(t))

	v := NewVerifier("users-service").
		WithHTTPTransport(srv.URL, "").
		WithPactFile(pactPath).
		WithStateHandler(StateHandlerFunc2(func(ctx context.Context, state string, action StateAction, params map[string]any) error {
			return nil
		}))

	report, err := v.Verify(context.Background())
	var verErr *VerificationError
	require.ErrorAs(t, err, &verErr)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusFail, report.Results[0].Status)
	assert.NotEmpty(t, report.Results[0].Mismatches)
}

func TestVerifierPendingFailureDoesNotFailOverall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	p := buildUserPact(t)
	p.Interactions[0].Pending = true
	pactPath := writeTempPact(t, p)

	v := NewVerifier("users-service").
		WithHTTPTransport(srv.URL, "").
		WithPactFile(pactPath).
		WithEnablePending(true).
		WithStateHandler(StateHandlerFunc2(func(ctx context.Context, state string, action StateAction, params map[string]any) error {
			return nil
		}))

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusPendingFail, report.Results[0].Status)
}

func TestVerifierFilterDescriptionExcludesNonMatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 123, "name": "Alice"})
	}))
	defer srv.Close()

	pactPath := writeTempPact(t, buildUserPact(t))

	v := NewVerifier("users-service").
		WithHTTPTransport(srv.URL, "").
		WithPactFile(pactPath).
		WithFilterDescription("nonexistent").
		WithStateHandler(StateHandlerFunc2(func(ctx context.Context, state string, action StateAction, params map[string]any) error {
			return nil
		}))

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestVerifyRejectsEmptyProviderName(t *testing.T) {
	v := NewVerifier("")
	_, err := v.Verify(context.Background())
	require.Error(t, err)
}

func TestVerifyRejectsNoSources(t *testing.T) {
	v := NewVerifier("users-service")
	_, err := v.Verify(context.Background())
	require.Error(t, err)
}
