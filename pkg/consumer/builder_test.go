package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

func TestBuilderSimpleHTTPInteraction(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("a request for a user").
		Given("user 123 exists", map[string]any{"id": 123}).
		WithMethod("get").
		WithPath("/users/123").
		WithHeader("Accept", "application/json").
		WillRespondWith(200).
		WithHeader("Content-Type", "application/json").
		WithBody(map[string]any{
			"id":   123,
			"name": matchers.Matched("Alice", matchers.Type()),
		}, "application/json")

	p, err := b.Pact()
	require.NoError(t, err)
	require.Len(t, p.Interactions, 1)

	i := p.Interactions[0]
	assert.Equal(t, pact.TypeSynchronousHTTP, i.Type)
	assert.Equal(t, "a request for a user", i.Description)
	require.Len(t, i.ProviderStates, 1)
	assert.Equal(t, "user 123 exists", i.ProviderStates[0].Name)

	assert.Equal(t, "GET", i.Request.Method)
	assert.Equal(t, "/users/123", i.Request.Path)
	assert.Equal(t, []string{"application/json"}, i.Request.Headers["Accept"])

	assert.Equal(t, 200, i.Response.Status)
	require.NotNil(t, i.Response.Body)
	content := i.Response.Body.Content.(map[string]any)
	assert.Equal(t, "Alice", content["name"])
	require.NotNil(t, i.Response.Rules)
	rs, ok := i.Response.Rules[matchers.CategoryBody]["$.name"]
	require.True(t, ok)
	assert.Equal(t, matchers.KindType, rs.Rules[0].Kind)
}

func TestBuilderMultipleInteractionsFinalizeOnNextUponReceiving(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("first").WithMethod("GET").WithPath("/a").WillRespondWith(200)
	b.UponReceiving("second").WithMethod("GET").WithPath("/b").WillRespondWith(204)

	exps, err := b.Expectations()
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "first", exps[0].Description)
	assert.Equal(t, "second", exps[1].Description)
}

func TestBuilderRepeatableFlag(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("repeatable one").WithMethod("GET").WithPath("/ping").Repeatable().WillRespondWith(200)

	exps, err := b.Expectations()
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.True(t, exps[0].Repeatable)
}

func TestBuilderPathMatcherExtractsRule(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("regex path").
		WithMethod("GET").
		WithPath(matchers.Matched("/users/123", matchers.Regex(`^/users/\d+$`))).
		WillRespondWith(200)

	exps, err := b.Expectations()
	require.NoError(t, err)
	rs, ok := exps[0].Request.Rules[matchers.CategoryPath]["$.path"]
	require.True(t, ok)
	assert.Equal(t, matchers.KindRegex, rs.Rules[0].Kind)
	assert.Equal(t, "/users/123", exps[0].Request.Path)
}

func TestBuilderMessageInteraction(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceivingMessage("a user-deleted event").
		Given("user 123 exists", nil).
		WithMetadata("eventType", "user.deleted").
		WithMessageBody(map[string]any{"action": "delete_user", "user_id": "123"}, "application/json")

	exps, err := b.Expectations()
	require.NoError(t, err)
	require.Len(t, exps, 1)
	m := exps[0].Message
	require.NotNil(t, m)
	assert.Equal(t, "user.deleted", m.Metadata["eventType"])
	assert.JSONEq(t, `{"action":"delete_user","user_id":"123"}`, string(m.Contents))
}

func TestBuilderSetterBeforeUponReceivingFails(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.WithMethod("GET")
	_, err := b.Pact()
	require.Error(t, err)
}

func TestBuilderWithQueryParameterAccumulatesMultiValue(t *testing.T) {
	b := NewBuilder("consumer", "provider")
	b.UponReceiving("query").
		WithMethod("GET").
		WithPath("/search").
		WithQueryParameter("tag", "a").
		WithQueryParameter("tag", "b").
		WillRespondWith(200)

	exps, err := b.Expectations()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, exps[0].Request.Query["tag"])
}
