package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

func TestMatchRequestSimpleHappyPath(t *testing.T) {
	expected := &pact.Request{
		Method: "GET",
		Path:   "/users/1",
		Headers: map[string][]string{
			"Accept": {"application/json"},
		},
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"id": float64(1), "name": "Alice"},
		},
	}
	actual := &pact.Request{
		Method: "GET",
		Path:   "/users/1",
		Headers: map[string][]string{
			"Accept": {"application/json"},
		},
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"id": float64(1), "name": "Alice"},
		},
	}
	assert.Empty(t, MatchRequest(expected, actual))
}

func TestMatchRequestMethodMismatch(t *testing.T) {
	expected := &pact.Request{Method: "GET", Path: "/users/1"}
	actual := &pact.Request{Method: "POST", Path: "/users/1"}
	ms := MatchRequest(expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, MethodMismatch, ms[0].Kind)
}

func TestMatchRequestHeaderRegex(t *testing.T) {
	expected := &pact.Request{
		Method:  "GET",
		Path:    "/",
		Headers: map[string][]string{"X-Request-Id": {"abc-123"}},
		Rules: matchers.MatchingRules{
			matchers.CategoryHeader: matchers.RuleTree{
				"X-Request-Id": matchers.And(matchers.Regex(`^[a-z]+-\d+$`)),
			},
		},
	}

	passing := &pact.Request{Method: "GET", Path: "/", Headers: map[string][]string{"X-Request-Id": {"zzz-999"}}}
	assert.Empty(t, MatchRequest(expected, passing))

	failing := &pact.Request{Method: "GET", Path: "/", Headers: map[string][]string{"X-Request-Id": {"nope"}}}
	ms := MatchRequest(expected, failing)
	require.Len(t, ms, 1)
	assert.Equal(t, HeaderMismatch, ms[0].Kind)
}

func TestMatchResponseBodyArrayMin(t *testing.T) {
	expected := &pact.Response{
		Status: 200,
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"items": []any{map[string]any{"id": float64(1)}}},
		},
		Rules: matchers.MatchingRules{
			matchers.CategoryBody: matchers.RuleTree{
				"$.items": matchers.And(matchers.Min(1), matchers.Type()),
			},
		},
	}

	passing := &pact.Response{
		Status: 200,
		Body: &pact.Body{
			ContentType: "application/json",
			Content: map[string]any{"items": []any{
				map[string]any{"id": float64(1)},
				map[string]any{"id": float64(2)},
				map[string]any{"id": float64(3)},
			}},
		},
	}
	assert.Empty(t, MatchResponse(expected, passing))

	failing := &pact.Response{
		Status: 200,
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"items": []any{}},
		},
	}
	ms := MatchResponse(expected, failing)
	require.NotEmpty(t, ms)
	assert.Equal(t, BodyMismatch, ms[0].Kind)
}

func TestMatchResponseStatusMismatch(t *testing.T) {
	expected := &pact.Response{Status: 200}
	actual := &pact.Response{Status: 500}
	ms := MatchResponse(expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, StatusMismatch, ms[0].Kind)
}

func TestMatchBodyMissingKey(t *testing.T) {
	expected := &pact.Request{
		Method: "POST",
		Path:   "/",
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"id": float64(1), "name": "Alice"},
		},
	}
	actual := &pact.Request{
		Method: "POST",
		Path:   "/",
		Body: &pact.Body{
			ContentType: "application/json",
			Content:     map[string]any{"id": float64(1)},
		},
	}
	ms := MatchRequest(expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, BodyMismatch, ms[0].Kind)
	assert.Contains(t, ms[0].Message, "name")
}

func TestMatchMessageContentsAndMetadata(t *testing.T) {
	expected := &pact.MessageContents{
		Contents:    []byte(`{"event":"created"}`),
		ContentType: "application/json",
		Metadata:    map[string]any{"topic": "orders"},
	}
	actual := &pact.MessageContents{
		Contents:    []byte(`{"event":"created"}`),
		ContentType: "application/json",
		Metadata:    map[string]any{"topic": "orders"},
	}
	assert.Empty(t, MatchMessage(expected, actual))

	actual.Metadata["topic"] = "invoices"
	ms := MatchMessage(expected, actual)
	require.NotEmpty(t, ms)
	assert.Equal(t, MetadataMismatch, ms[0].Kind)
}
