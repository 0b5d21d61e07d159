package pact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interactionNamed(desc string) Interaction {
	return Interaction{
		Type:        TypeSynchronousHTTP,
		Description: desc,
		Request:     &Request{Method: "GET", Path: "/" + desc},
		Response:    &Response{Status: 200},
	}
}

func TestMergePreservesUntouchedAndReplacesMatching(t *testing.T) {
	existing := New("c", "p")
	existing.Interactions = []Interaction{interactionNamed("a"), interactionNamed("b")}

	fresh := New("c", "p")
	replacement := interactionNamed("b")
	replacement.Response.Status = 404
	fresh.Interactions = []Interaction{replacement}

	merged := Merge(existing, fresh)
	require.Len(t, merged.Interactions, 2)
	assert.Equal(t, "a", merged.Interactions[0].Description)
	assert.Equal(t, "b", merged.Interactions[1].Description)
	assert.Equal(t, 404, merged.Interactions[1].Response.Status)
}

func TestMergeAppendsNewInteractions(t *testing.T) {
	existing := New("c", "p")
	existing.Interactions = []Interaction{interactionNamed("a")}

	fresh := New("c", "p")
	fresh.Interactions = []Interaction{interactionNamed("z")}

	merged := Merge(existing, fresh)
	require.Len(t, merged.Interactions, 2)
	assert.Equal(t, "a", merged.Interactions[0].Description)
	assert.Equal(t, "z", merged.Interactions[1].Description)
}

func TestMergeNilExisting(t *testing.T) {
	fresh := New("c", "p")
	fresh.Interactions = []Interaction{interactionNamed("a")}
	merged := Merge(nil, fresh)
	assert.Same(t, fresh, merged)
}
