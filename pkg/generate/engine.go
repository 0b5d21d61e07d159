package generate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pact-foundation/pact-go/internal/dateformat"
	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// Generate materializes a concrete JSON value for gen, using ctx for
// randomness, the mock server URL, and provider-state parameter
// substitution (§4.2).
func Generate(ctx *Context, gen matchers.Generator) (any, error) {
	switch gen.Kind {
	case matchers.GenRandomInt:
		lo, hi := gen.Min, gen.Max
		if hi <= lo {
			hi = lo + 1
		}
		return lo + ctx.intn(hi-lo+1), nil

	case matchers.GenRandomDecimal:
		digits := gen.DigitCount
		if digits <= 0 {
			digits = 2
		}
		scale := 1.0
		for i := 0; i < digits; i++ {
			scale *= 10
		}
		whole := float64(ctx.intn(1000))
		frac := float64(int(ctx.float64()*scale)) / scale
		return whole + frac, nil

	case matchers.GenRandomHexadecimal:
		digits := gen.DigitCount
		if digits <= 0 {
			digits = 8
		}
		return ctx.randomHex(digits), nil

	case matchers.GenRandomString:
		size := gen.Size
		if size <= 0 {
			size = 10
		}
		return ctx.randomAlnum(size), nil

	case matchers.GenRegex:
		return fromRegex(ctx.rng(), gen.Regex)

	case matchers.GenUuid:
		return uuid.NewString(), nil

	case matchers.GenDate:
		layout := dateformat.DefaultDate
		if gen.Format != "" {
			layout = dateformat.ToGoLayout(gen.Format)
		}
		return time.Now().UTC().Format(layout), nil

	case matchers.GenTime:
		layout := dateformat.DefaultTime
		if gen.Format != "" {
			layout = dateformat.ToGoLayout(gen.Format)
		}
		return time.Now().UTC().Format(layout), nil

	case matchers.GenDateTime:
		layout := dateformat.DefaultDateTime
		if gen.Format != "" {
			layout = dateformat.ToGoLayout(gen.Format)
		}
		return time.Now().UTC().Format(layout), nil

	case matchers.GenRandomBoolean:
		return ctx.intn(2) == 1, nil

	case matchers.GenProviderState:
		return ctx.substituteProviderState(gen.Expression)

	case matchers.GenMockServerURL:
		return ctx.rewriteMockServerURL(gen.Example)

	default:
		return nil, fmt.Errorf("generate: unknown generator kind %q", gen.Kind)
	}
}
