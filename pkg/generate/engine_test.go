package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

func TestGenerateRandomIntWithinBounds(t *testing.T) {
	ctx := NewContext(42, "", nil)
	for i := 0; i < 50; i++ {
		v, err := Generate(ctx, matchers.RandomInt(10, 20))
		require.NoError(t, err)
		n := v.(int)
		assert.GreaterOrEqual(t, n, 10)
		assert.LessOrEqual(t, n, 20)
	}
}

func TestGenerateDeterministicForSameSeed(t *testing.T) {
	gen := matchers.RandomInt(0, 1_000_000)
	a, err := Generate(NewContext(7, "", nil), gen)
	require.NoError(t, err)
	b, err := Generate(NewContext(7, "", nil), gen)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateUuid(t *testing.T) {
	ctx := NewContext(1, "", nil)
	v, err := Generate(ctx, matchers.Uuid())
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	assert.Len(t, s, 36)
}

func TestGenerateRegexProducesMatchingString(t *testing.T) {
	ctx := NewContext(3, "", nil)
	v, err := Generate(ctx, matchers.RegexGenerator(`^[a-f0-9]{8}$`))
	require.NoError(t, err)
	s := v.(string)
	assert.Regexp(t, `^[a-f0-9]{8}$`, s)
}

func TestGenerateProviderStateSubstitution(t *testing.T) {
	ctx := NewContext(1, "", map[string]any{"userId": 123})
	v, err := Generate(ctx, matchers.ProviderStateGenerator("user-${userId}"))
	require.NoError(t, err)
	assert.Equal(t, "user-123", v)
}

func TestGenerateProviderStateMissingParam(t *testing.T) {
	ctx := NewContext(1, "", nil)
	_, err := Generate(ctx, matchers.ProviderStateGenerator("user-${missing}"))
	assert.Error(t, err)
}

func TestGenerateMockServerURLRewritesHost(t *testing.T) {
	ctx := NewContext(1, "http://127.0.0.1:55123", nil)
	v, err := Generate(ctx, matchers.MockServerURLGenerator("http://example.org/users/1", ".*"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:55123/users/1", v)
}

func TestApplyToJSONSubstitutesSelector(t *testing.T) {
	ctx := NewContext(9, "", nil)
	content := map[string]any{"id": float64(0), "name": "placeholder"}
	tree := matchers.GeneratorTree{
		"$.id": matchers.RandomInt(1, 100),
	}
	result, err := ApplyToJSON(ctx, content, tree)
	require.NoError(t, err)
	m := result.(map[string]any)
	assert.NotEqual(t, float64(0), m["id"])
	assert.Equal(t, "placeholder", m["name"])
}
