package consumer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

// part selects which half of an in-progress HTTP interaction the shared
// setters (WithHeader, WithBody, ...) currently target.
type part int

const (
	partRequest part = iota
	partResponse
	partMessage
)

// Expectation pairs an interaction with the MockServer-only "repeatable"
// flag: whether the interaction may be matched more than once in a single
// session. Repeatable is deliberately not part of pact.Interaction — it
// governs test-session bookkeeping, not anything written to the pact file.
type Expectation struct {
	pact.Interaction
	Repeatable bool
}

// Builder is the fluent InteractionBuilder of §4.4. Shared setters
// (WithHeader, WithBody, ...) apply to the request before WillRespondWith
// is called and to the response after, unless overridden with ForRequest
// or ForResponse. Calling UponReceiving (or UponReceivingMessage) again
// finalizes whatever interaction is in progress and starts a new one.
type Builder struct {
	consumer, provider string
	expectations       []*Expectation
	current            *Expectation
	target             part
	err                error
}

// NewBuilder starts a builder for a pact between consumer and provider.
func NewBuilder(consumer, provider string) *Builder {
	return &Builder{consumer: consumer, provider: provider}
}

func (b *Builder) fail(msg string) {
	if b.err == nil {
		b.err = pacterr.NewConfigError(msg, nil)
	}
}

// requireCurrent reports whether an interaction is in progress, recording
// a ConfigError and returning false if a setter was called out of order.
func (b *Builder) requireCurrent(method string) bool {
	if b.current == nil {
		b.fail(fmt.Sprintf("consumer: %s called before UponReceiving or UponReceivingMessage", method))
		return false
	}
	return true
}

func (b *Builder) finalizeCurrent() {
	if b.current != nil {
		b.expectations = append(b.expectations, b.current)
		b.current = nil
	}
}

// UponReceiving starts a new Synchronous/HTTP interaction.
func (b *Builder) UponReceiving(description string) *Builder {
	b.finalizeCurrent()
	b.current = &Expectation{Interaction: pact.Interaction{
		Type:        pact.TypeSynchronousHTTP,
		Description: description,
		Request:     &pact.Request{Method: "GET"},
		Response:    &pact.Response{},
	}}
	b.target = partRequest
	return b
}

// UponReceivingMessage starts a new Asynchronous/Messages interaction.
func (b *Builder) UponReceivingMessage(description string) *Builder {
	b.finalizeCurrent()
	b.current = &Expectation{Interaction: pact.Interaction{
		Type:        pact.TypeAsynchronousMessage,
		Description: description,
		Message:     &pact.MessageContents{Metadata: map[string]any{}},
	}}
	b.target = partMessage
	return b
}

// Given appends a provider state precondition; may be called repeatedly.
func (b *Builder) Given(state string, params map[string]any) *Builder {
	if !b.requireCurrent("Given") {
		return b
	}
	b.current.ProviderStates = append(b.current.ProviderStates, pact.ProviderState{Name: state, Parameters: params})
	return b
}

// ForRequest explicitly targets the request, overriding the automatic
// before/after-WillRespondWith rule.
func (b *Builder) ForRequest() *Builder {
	if !b.requireCurrent("ForRequest") {
		return b
	}
	if b.current.Request == nil {
		b.fail("consumer: ForRequest: not an HTTP interaction")
		return b
	}
	b.target = partRequest
	return b
}

// ForResponse explicitly targets the response, overriding the automatic
// before/after-WillRespondWith rule.
func (b *Builder) ForResponse() *Builder {
	if !b.requireCurrent("ForResponse") {
		return b
	}
	if b.current.Response == nil {
		b.fail("consumer: ForResponse: not an HTTP interaction")
		return b
	}
	b.target = partResponse
	return b
}

// WithMethod sets the expected request method.
func (b *Builder) WithMethod(method string) *Builder {
	if !b.requireCurrent("WithMethod") {
		return b
	}
	b.current.Request.Method = strings.ToUpper(method)
	return b
}

// WithPath sets the expected request path. value may be a plain string or
// a matchers.ValueSite (e.g. matchers.Matched("/users/123", matchers.Regex(`^/users/\d+$`))).
func (b *Builder) WithPath(value any) *Builder {
	if !b.requireCurrent("WithPath") {
		return b
	}
	content, rules, gens := extractValueSites("$.path", value)
	b.current.Request.Path = fmt.Sprint(content)
	mergeRules(&b.current.Request.Rules, matchers.CategoryPath, rules)
	mergeGenerators(&b.current.Request.Generators, gens)
	return b
}

// WithQueryParameter appends a value for name; calling it again for the
// same name accumulates an ordered multi-value list.
func (b *Builder) WithQueryParameter(name string, value any) *Builder {
	if !b.requireCurrent("WithQueryParameter") {
		return b
	}
	content, rules, gens := extractValueSites(name, value)
	if b.current.Request.Query == nil {
		b.current.Request.Query = map[string][]string{}
	}
	b.current.Request.Query[name] = append(b.current.Request.Query[name], fmt.Sprint(content))
	mergeRules(&b.current.Request.Rules, matchers.CategoryQuery, rules)
	mergeGenerators(&b.current.Request.Generators, gens)
	return b
}

// WithStatus sets the expected response status code. value may be a plain
// int or a matchers.ValueSite.
func (b *Builder) WithStatus(value any) *Builder {
	if !b.requireCurrent("WithStatus") {
		return b
	}
	content, rules, gens := extractValueSites("$.status", value)
	code, ok := toIntValue(content)
	if !ok {
		b.fail(fmt.Sprintf("consumer: WithStatus: expected an int status code, got %T", content))
		return b
	}
	b.current.Response.Status = code
	mergeRules(&b.current.Response.Rules, matchers.CategoryStatus, rules)
	mergeGenerators(&b.current.Response.Generators, gens)
	return b
}

// WillRespondWith switches the builder's target to the response (unless
// overridden with ForRequest/ForResponse) and records the expected status.
func (b *Builder) WillRespondWith(status any) *Builder {
	if !b.requireCurrent("WillRespondWith") {
		return b
	}
	b.target = partResponse
	return b.WithStatus(status)
}

// WithHeader is a shared setter: it applies to the request or response
// depending on the builder's current target.
func (b *Builder) WithHeader(name string, value any) *Builder {
	if !b.requireCurrent("WithHeader") {
		return b
	}
	content, rules, gens := extractValueSites(name, value)
	switch b.target {
	case partResponse:
		if b.current.Response.Headers == nil {
			b.current.Response.Headers = map[string][]string{}
		}
		b.current.Response.Headers[name] = append(b.current.Response.Headers[name], fmt.Sprint(content))
		mergeRules(&b.current.Response.Rules, matchers.CategoryHeader, rules)
		mergeGenerators(&b.current.Response.Generators, gens)
	case partRequest:
		if b.current.Request.Headers == nil {
			b.current.Request.Headers = map[string][]string{}
		}
		b.current.Request.Headers[name] = append(b.current.Request.Headers[name], fmt.Sprint(content))
		mergeRules(&b.current.Request.Rules, matchers.CategoryHeader, rules)
		mergeGenerators(&b.current.Request.Generators, gens)
	default:
		b.fail("consumer: WithHeader: not applicable to a message interaction")
	}
	return b
}

// WithBody is a shared setter for the HTTP request/response body. value is
// serialized according to contentType; any embedded matchers.ValueSite
// leaves are extracted into the matching-rule and generator trees at their
// JSON-path selector.
func (b *Builder) WithBody(value any, contentType string) *Builder {
	if !b.requireCurrent("WithBody") {
		return b
	}
	content, rules, gens := extractValueSites("$", value)
	raw, err := renderBodyBytes(content, contentType)
	if err != nil {
		b.fail(fmt.Sprintf("consumer: WithBody: %v", err))
		return b
	}
	body := &pact.Body{ContentType: contentType, Content: content, Bytes: raw}
	switch b.target {
	case partResponse:
		b.current.Response.Body = body
		mergeRules(&b.current.Response.Rules, matchers.CategoryBody, rules)
		mergeGenerators(&b.current.Response.Generators, gens)
	case partRequest:
		b.current.Request.Body = body
		mergeRules(&b.current.Request.Rules, matchers.CategoryBody, rules)
		mergeGenerators(&b.current.Request.Generators, gens)
	default:
		b.fail("consumer: WithBody: not applicable to a message interaction; use WithMessageBody")
	}
	return b
}

// WithMetadata sets one metadata key of a message interaction.
func (b *Builder) WithMetadata(key string, value any) *Builder {
	if !b.requireCurrent("WithMetadata") {
		return b
	}
	if b.current.Message == nil {
		b.fail("consumer: WithMetadata: not a message interaction")
		return b
	}
	content, rules, gens := extractValueSites(childSelector("$.metadata", key), value)
	b.current.Message.Metadata[key] = content
	mergeRules(&b.current.Message.Rules, matchers.CategoryMetadata, rules)
	mergeGenerators(&b.current.Message.Generators, gens)
	return b
}

// WithMessageBody sets the contents of a message interaction.
func (b *Builder) WithMessageBody(value any, contentType string) *Builder {
	if !b.requireCurrent("WithMessageBody") {
		return b
	}
	if b.current.Message == nil {
		b.fail("consumer: WithMessageBody: not a message interaction")
		return b
	}
	content, rules, gens := extractValueSites("$", value)
	raw, err := renderBodyBytes(content, contentType)
	if err != nil {
		b.fail(fmt.Sprintf("consumer: WithMessageBody: %v", err))
		return b
	}
	b.current.Message.Contents = raw
	b.current.Message.ContentType = contentType
	mergeRules(&b.current.Message.Rules, matchers.CategoryBody, rules)
	mergeGenerators(&b.current.Message.Generators, gens)
	return b
}

// Repeatable marks the in-progress interaction as matchable more than once
// within a single MockServer session (§4.5: "one-shot by default but may
// be marked repeatable via a builder flag").
func (b *Builder) Repeatable() *Builder {
	if !b.requireCurrent("Repeatable") {
		return b
	}
	b.current.Repeatable = true
	return b
}

// Pending marks the in-progress interaction as pending (§3.1, §4.6): a
// failure will not fail an overall verification result.
func (b *Builder) Pending() *Builder {
	if !b.requireCurrent("Pending") {
		return b
	}
	b.current.Pending = true
	return b
}

// Expectations finalizes any interaction in progress and returns every
// expectation built so far, for handing to a MockServer.
func (b *Builder) Expectations() ([]*Expectation, error) {
	b.finalizeCurrent()
	if b.err != nil {
		return nil, b.err
	}
	return b.expectations, nil
}

// Pact finalizes the builder and assembles a *pact.Pact from every
// interaction built so far, validating it per §4.3's invariants.
func (b *Builder) Pact() (*pact.Pact, error) {
	exps, err := b.Expectations()
	if err != nil {
		return nil, err
	}
	p := pact.New(b.consumer, b.provider)
	for _, e := range exps {
		p.Append(e.Interaction)
	}
	if err := p.Validate(); err != nil {
		return nil, pacterr.NewConfigError("invalid pact", err)
	}
	return p, nil
}

func mergeRules(dst *matchers.MatchingRules, cat matchers.Category, tree matchers.RuleTree) {
	if len(tree) == 0 {
		return
	}
	if *dst == nil {
		*dst = matchers.MatchingRules{}
	}
	existing := (*dst)[cat]
	if existing == nil {
		existing = matchers.RuleTree{}
	}
	for k, v := range tree {
		existing[k] = v
	}
	(*dst)[cat] = existing
}

func mergeGenerators(dst *matchers.GeneratorTree, tree matchers.GeneratorTree) {
	if len(tree) == 0 {
		return
	}
	if *dst == nil {
		*dst = matchers.GeneratorTree{}
	}
	for k, v := range tree {
		(*dst)[k] = v
	}
}

func toIntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func renderBodyBytes(content any, contentType string) ([]byte, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return json.Marshal(content)

	case strings.Contains(ct, "x-www-form-urlencoded"):
		values := url.Values{}
		switch m := content.(type) {
		case map[string][]string:
			for k, vs := range m {
				values[k] = vs
			}
		case map[string]any:
			for k, v := range m {
				values.Add(k, fmt.Sprint(v))
			}
		default:
			return nil, fmt.Errorf("form-urlencoded body must be a map, got %T", content)
		}
		return []byte(values.Encode()), nil

	default:
		switch v := content.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return json.Marshal(v)
		}
	}
}
