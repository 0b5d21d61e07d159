package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

func TestMatchHeadersDefaultCaseInsensitive(t *testing.T) {
	expected := map[string][]string{"X-Request-Id": {"ABC-123"}}
	actual := map[string][]string{"x-request-id": {"abc-123"}}
	assert.Empty(t, matchHeaders(nil, expected, actual))
}

func TestMatchHeadersDefaultMismatch(t *testing.T) {
	expected := map[string][]string{"Accept": {"application/json"}}
	actual := map[string][]string{"Accept": {"text/plain"}}
	ms := matchHeaders(nil, expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, HeaderMismatch, ms[0].Kind)
}

func TestMatchQueryDefaultCaseInsensitive(t *testing.T) {
	expected := map[string][]string{"status": {"ACTIVE"}}
	actual := map[string][]string{"status": {"active"}}
	assert.Empty(t, matchQuery(nil, expected, actual))
}

func TestMatchQueryDefaultMismatch(t *testing.T) {
	expected := map[string][]string{"status": {"active"}}
	actual := map[string][]string{"status": {"inactive"}}
	ms := matchQuery(nil, expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, QueryMismatch, ms[0].Kind)
}

func TestMatchQueryMissingParameter(t *testing.T) {
	expected := map[string][]string{"page": {"1"}}
	actual := map[string][]string{}
	ms := matchQuery(nil, expected, actual)
	require.Len(t, ms, 1)
	assert.Equal(t, QueryMismatch, ms[0].Kind)
}

func TestMatchQueryHonoursMatchingRule(t *testing.T) {
	tree := matchers.RuleTree{"page": matchers.And(matchers.Regex(`^\d+$`))}
	expected := map[string][]string{"page": {"1"}}
	actual := map[string][]string{"page": {"42"}}
	assert.Empty(t, matchQuery(tree, expected, actual))
}
