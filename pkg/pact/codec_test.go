package pact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

func simpleHTTPPact() *Pact {
	p := New("billing-consumer", "billing-provider")
	p.Append(Interaction{
		Type:        TypeSynchronousHTTP,
		Description: "a request for user 123",
		ProviderStates: []ProviderState{
			{Name: "user exists", Parameters: map[string]any{"id": float64(123)}},
		},
		Request: &Request{
			Method: "GET",
			Path:   "/users/123",
		},
		Response: &Response{
			Status: 200,
			Headers: map[string][]string{
				"Content-Type": {"application/json"},
			},
			Body: &Body{
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
	return p
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := simpleHTTPPact()
	encoded, err := Encode(p)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, p.Consumer, decoded.Consumer)
	assert.Equal(t, p.Provider, decoded.Provider)
	require.Len(t, decoded.Interactions, 1)

	di := decoded.Interactions[0]
	assert.Equal(t, "a request for user 123", di.Description)
	assert.Equal(t, TypeSynchronousHTTP, di.Type)
	require.Len(t, di.ProviderStates, 1)
	assert.Equal(t, "user exists", di.ProviderStates[0].Name)
	assert.Equal(t, "GET", di.Request.Method)
	assert.Equal(t, "/users/123", di.Request.Path)
	assert.Equal(t, 200, di.Response.Status)
	assert.Contains(t, di.Response.Rules[matchers.CategoryBody], "$.name")
}

func TestEncodeDecodeRoundTripByteStable(t *testing.T) {
	p := simpleHTTPPact()
	first, err := Encode(p)
	require.NoError(t, err)

	decoded, err := Decode(first)
	require.NoError(t, err)

	second, err := Encode(decoded)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestDecodeAsyncMessage(t *testing.T) {
	p := New("consumer", "provider")
	p.Append(Interaction{
		Type:        TypeAsynchronousMessage,
		Description: "a user deletion event",
		Message: &MessageContents{
			Contents:    []byte(`{"action":"delete_user","user_id":"123"}`),
			ContentType: "application/json",
		},
	})
	encoded, err := Encode(p)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Interactions, 1)
	assert.Equal(t, TypeAsynchronousMessage, decoded.Interactions[0].Type)
	assert.JSONEq(t, `{"action":"delete_user","user_id":"123"}`, string(decoded.Interactions[0].Message.Contents))
}
