package generate

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
)

// Context carries the state a Generator needs to produce a value: a seeded
// PRNG (for determinism within one mock-server or verifier session), the
// mock server's base URL, and the provider-state parameter values available
// for "${name}" substitution.
type Context struct {
	Rand        *rand.Rand
	MockURL     string
	StateParams map[string]any
}

// NewContext builds a Context seeded deterministically from seed.
func NewContext(seed uint64, mockURL string, stateParams map[string]any) *Context {
	return &Context{
		Rand:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		MockURL:     mockURL,
		StateParams: stateParams,
	}
}

func (c *Context) rng() *rand.Rand {
	if c == nil || c.Rand == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c.Rand
}

func (c *Context) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return c.rng().IntN(n)
}

func (c *Context) float64() float64 {
	return c.rng().Float64()
}

var stateExprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteProviderState replaces every "${name}" occurrence in expr with
// the matching entry from ctx.StateParams, per §4.2.
func (c *Context) substituteProviderState(expr string) (string, error) {
	var firstErr error
	result := stateExprPattern.ReplaceAllStringFunc(expr, func(match string) string {
		name := stateExprPattern.FindStringSubmatch(match)[1]
		val, ok := c.paramValue(name)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("generate: provider-state parameter %q not found", name)
			}
			return match
		}
		return fmt.Sprint(val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (c *Context) paramValue(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.StateParams[name]
	return v, ok
}

// rewriteMockServerURL replaces the host:port segment of example with the
// Context's mock server URL, per §4.2's MockServerURL generator.
func (c *Context) rewriteMockServerURL(example string) (string, error) {
	if c.MockURL == "" {
		return example, nil
	}
	exampleURL, err := url.Parse(example)
	if err != nil {
		return "", fmt.Errorf("generate: parsing example URL %q: %w", example, err)
	}
	mockURL, err := url.Parse(c.MockURL)
	if err != nil {
		return "", fmt.Errorf("generate: parsing mock server URL %q: %w", c.MockURL, err)
	}
	exampleURL.Scheme = mockURL.Scheme
	exampleURL.Host = mockURL.Host
	return exampleURL.String(), nil
}

const hexDigits = "0123456789abcdef"
const alnumDigits = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (c *Context) randomHex(digits int) string {
	var b strings.Builder
	for i := 0; i < digits; i++ {
		b.WriteByte(hexDigits[c.intn(len(hexDigits))])
	}
	return b.String()
}

func (c *Context) randomAlnum(size int) string {
	var b strings.Builder
	for i := 0; i < size; i++ {
		b.WriteByte(alnumDigits[c.intn(len(alnumDigits))])
	}
	return b.String()
}
