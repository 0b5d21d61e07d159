package generate

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// ApplyToJSON renders every generator in tree against content, returning a
// new value with each selector's generated value substituted in place.
// Uses ojg/jp to evaluate each selector against the decoded content and set
// the generated value in place.
func ApplyToJSON(ctx *Context, content any, tree matchers.GeneratorTree) (any, error) {
	if len(tree) == 0 {
		return content, nil
	}
	for selector, gen := range tree {
		value, err := Generate(ctx, gen)
		if err != nil {
			return nil, fmt.Errorf("generate: selector %q: %w", selector, err)
		}
		if selector == "$" {
			content = value
			continue
		}
		path, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("generate: parsing selector %q: %w", selector, err)
		}
		if err := path.Set(content, value); err != nil {
			return nil, fmt.Errorf("generate: applying selector %q: %w", selector, err)
		}
	}
	return content, nil
}
