package pact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionValidateRejectsEmptyDescription(t *testing.T) {
	i := Interaction{Type: TypeSynchronousHTTP, Request: &Request{}, Response: &Response{}}
	assert.Error(t, i.Validate())
}

func TestProviderStateEqual(t *testing.T) {
	a := ProviderState{Name: "user exists", Parameters: map[string]any{"id": 123}}
	b := ProviderState{Name: "user exists", Parameters: map[string]any{"id": 123}}
	c := ProviderState{Name: "user exists", Parameters: map[string]any{"id": 456}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestInteractionKeyDistinguishesByProviderState(t *testing.T) {
	base := interactionNamed("a")
	withState := base
	withState.ProviderStates = []ProviderState{{Name: "user exists"}}
	assert.NotEqual(t, base.Key(), withState.Key())
}

func TestPactValidateRejectsEmptyNames(t *testing.T) {
	p := New("", "provider")
	assert.Error(t, p.Validate())
}

func TestPactValidateRejectsDuplicateInteractionKeys(t *testing.T) {
	p := New("consumer", "provider")
	p.Interactions = []Interaction{interactionNamed("a"), interactionNamed("a")}
	assert.Error(t, p.Validate())
}

func TestPactAppendReplacesSameKey(t *testing.T) {
	p := New("consumer", "provider")
	p.Append(interactionNamed("a"))
	replacement := interactionNamed("a")
	replacement.Response.Status = 404
	p.Append(replacement)

	require.Len(t, p.Interactions, 1)
	assert.Equal(t, 404, p.Interactions[0].Response.Status)
}

func TestInteractionValidateRejectsMissingHTTPHalf(t *testing.T) {
	i := Interaction{Type: TypeSynchronousHTTP, Description: "x", Request: &Request{}}
	assert.Error(t, i.Validate())
}
