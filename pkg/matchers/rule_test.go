package matchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleSetEffectiveCombine(t *testing.T) {
	assert.Equal(t, CombineAND, RuleSet{}.EffectiveCombine())
	assert.Equal(t, CombineOR, RuleSet{Combine: CombineOR}.EffectiveCombine())
	assert.Equal(t, CombineAND, And(Type()).EffectiveCombine())
	assert.Equal(t, CombineOR, Or(Type(), Integer()).EffectiveCombine())
}

func TestRuleTreeValidate(t *testing.T) {
	valid := RuleTree{
		"$.id":   And(Integer()),
		"$.name": And(Type()),
	}
	assert.NoError(t, valid.Validate())

	badSelector := RuleTree{"id": And(Integer())}
	assert.Error(t, badSelector.Validate())

	emptyRules := RuleTree{"$.id": {}}
	assert.Error(t, emptyRules.Validate())
}

func TestFluentConstructors(t *testing.T) {
	r := Regex(`^[a-f0-9]{8}$`)
	assert.Equal(t, KindRegex, r.Kind)
	assert.Equal(t, `^[a-f0-9]{8}$`, r.Pattern)

	mm := MinMax(1, 5)
	assert.Equal(t, KindMinMax, mm.Kind)
	assert.Equal(t, 1, mm.Min)
	assert.Equal(t, 5, mm.Max)

	sc := StatusCodeClass("success")
	assert.Equal(t, KindStatusCode, sc.Kind)
	assert.Equal(t, "success", sc.Class)
}
