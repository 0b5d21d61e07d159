package consumer

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/match"
	"github.com/pact-foundation/pact-go/pkg/matchers"
)

func buildSimpleExpectations(t *testing.T) []*Expectation {
	t.Helper()
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("a request for a user").
		WithMethod("GET").
		WithPath("/users/123").
		WillRespondWith(200).
		WithHeader("Content-Type", "application/json").
		WithBody(map[string]any{
			"id":   123,
			"name": matchers.Matched("Alice", matchers.Type()),
		}, "application/json")
	exps, err := b.Expectations()
	require.NoError(t, err)
	return exps
}

func TestMockServerSimpleHappyPath(t *testing.T) {
	exps := buildSimpleExpectations(t)

	srv := NewMockServer()
	require.NoError(t, srv.Arm(exps))
	require.NoError(t, srv.Start())

	resp, err := http.Get(srv.URL() + "/users/123")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(123), body["id"])
	assert.Equal(t, "Alice", body["name"])

	status, err := srv.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{"a request for a user"}, status.Matched)
	assert.Empty(t, status.Unmatched)
	assert.Empty(t, status.Extra)
}

func TestMockServerMissingInteraction(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("first").WithMethod("GET").WithPath("/a").WillRespondWith(200)
	b.UponReceiving("second").WithMethod("GET").WithPath("/b").WillRespondWith(200)
	exps, err := b.Expectations()
	require.NoError(t, err)

	srv := NewMockServer()
	require.NoError(t, srv.Arm(exps))
	require.NoError(t, srv.Start())

	resp, err := http.Get(srv.URL() + "/a")
	require.NoError(t, err)
	resp.Body.Close()

	status, err := srv.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, status.Matched)
	assert.Equal(t, []string{"second"}, status.Unmatched)
	require.Len(t, status.Mismatches, 1)
	assert.Equal(t, match.MissingRequest, status.Mismatches[0].Kind)
}

func TestMockServerUnexpectedRequest(t *testing.T) {
	exps := buildSimpleExpectations(t)

	srv := NewMockServer()
	require.NoError(t, srv.Arm(exps))
	require.NoError(t, srv.Start())

	resp, err := http.Get(srv.URL() + "/not-registered")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Unexpected request", body["error"])
	assert.Equal(t, "/not-registered", body["path"])

	status, err := srv.Stop()
	require.NoError(t, err)
	require.Len(t, status.Extra, 1)
	assert.Equal(t, "/not-registered", status.Extra[0].Path)
}

func TestMockServerRepeatableInteractionMatchesMultipleTimes(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("ping").WithMethod("GET").WithPath("/ping").Repeatable().WillRespondWith(200)
	exps, err := b.Expectations()
	require.NoError(t, err)

	srv := NewMockServer()
	require.NoError(t, srv.Arm(exps))
	require.NoError(t, srv.Start())

	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL() + "/ping")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	status, err := srv.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, status.Matched)
	assert.Empty(t, status.Unmatched)
}
