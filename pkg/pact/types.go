// Package pact is the in-memory model of a pact: consumer, provider,
// specification version, and an ordered sequence of interactions, together
// with its canonical JSON encoding and merge-on-write semantics.
package pact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// Specification is the pact file format version.
type Specification string

const (
	SpecV1   Specification = "1.0"
	SpecV1_1 Specification = "1.1"
	SpecV2   Specification = "2.0"
	SpecV3   Specification = "3.0.0"
	SpecV4   Specification = "4.0"
)

var knownSpecifications = map[Specification]bool{
	SpecV1: true, SpecV1_1: true, SpecV2: true, SpecV3: true, SpecV4: true,
}

// Party names one end of a pact: the consumer or the provider.
type Party struct {
	Name string `json:"name"`
}

// ProviderState is a named, parameterized precondition the provider must
// satisfy before an interaction is replayed.
type ProviderState struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"params,omitempty"`
}

// Equal reports whether two provider states have the same name and the
// same parameters (order-independent), per §3.1's equality rule.
func (s ProviderState) Equal(o ProviderState) bool {
	if s.Name != o.Name {
		return false
	}
	if len(s.Parameters) != len(o.Parameters) {
		return false
	}
	for k, v := range s.Parameters {
		ov, ok := o.Parameters[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(ov) {
			return false
		}
	}
	return true
}

func statesKey(states []ProviderState) string {
	parts := make([]string, len(states))
	for i, s := range states {
		keys := make([]string, 0, len(s.Parameters))
		for k := range s.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(s.Name)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%v", k, s.Parameters[k])
		}
		parts[i] = b.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Body is a request/response/message payload: a MIME content type, the
// structured example value (used for JSON/form bodies) and the raw bytes
// (used for binary/text bodies). The matching rules and generators for value
// sites inside it are held by the enclosing Request, Response or
// MessageContents.
type Body struct {
	ContentType string
	Content     any
	Bytes       []byte
}

// Request is the expected (or actual, during replay/serving) HTTP request
// half of a SynchronousHttp interaction. Rules are keyed by category
// ("path", "query", "header", "body") per the wire format's grouping
// (§6.1); Generators is a single flat tree keyed by selector.
type Request struct {
	Method     string
	Path       string
	Query      map[string][]string
	Headers    map[string][]string
	Body       *Body
	Rules      matchers.MatchingRules
	Generators matchers.GeneratorTree
}

// Response is the expected (or actual) HTTP response half of a
// SynchronousHttp interaction.
type Response struct {
	Status     int
	Headers    map[string][]string
	Body       *Body
	Rules      matchers.MatchingRules
	Generators matchers.GeneratorTree
}

// MessageContents is the payload of an asynchronous message or one side of
// a V4 synchronous message pair.
type MessageContents struct {
	Contents    []byte
	Metadata    map[string]any
	ContentType string
	Rules       matchers.MatchingRules
	Generators  matchers.GeneratorTree
}

// InteractionType discriminates the tagged union of interaction variants.
type InteractionType string

const (
	TypeSynchronousHTTP     InteractionType = "Synchronous/HTTP"
	TypeAsynchronousMessage InteractionType = "Asynchronous/Messages"
	TypeSynchronousMessage  InteractionType = "Synchronous/Messages"
)

// Interaction is a tagged union over the three variants named in §3.1.
// Exactly one of (Request+Response), Message, or (MessageRequest+
// MessageResponse) is populated, selected by Type.
type Interaction struct {
	ID             string
	Type           InteractionType
	Description    string
	ProviderStates []ProviderState
	Pending        bool
	Comments       map[string]any

	// SynchronousHttp
	Request  *Request
	Response *Response

	// AsynchronousMessage
	Message *MessageContents

	// SynchronousMessage (V4)
	MessageRequest  *MessageContents
	MessageResponse *MessageContents
}

// Key returns the uniqueness/merge identity of an interaction: description
// plus the sorted set of provider-state name+params, per §3.1's invariant
// and §4.3's merge rule.
func (i Interaction) Key() string {
	return i.Description + "\x00" + statesKey(i.ProviderStates)
}

// Validate checks the per-interaction invariants this package can verify in
// isolation (uniqueness of the key within a pact is checked at Pact level).
func (i Interaction) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("pact: interaction description must not be empty")
	}
	switch i.Type {
	case TypeSynchronousHTTP:
		if i.Request == nil || i.Response == nil {
			return fmt.Errorf("pact: %q: Synchronous/HTTP interaction requires both request and response", i.Description)
		}
	case TypeAsynchronousMessage:
		if i.Message == nil {
			return fmt.Errorf("pact: %q: Asynchronous/Messages interaction requires message contents", i.Description)
		}
	case TypeSynchronousMessage:
		if i.MessageRequest == nil || i.MessageResponse == nil {
			return fmt.Errorf("pact: %q: Synchronous/Messages interaction requires a request and response message pair", i.Description)
		}
	default:
		return fmt.Errorf("pact: %q: unknown interaction type %q", i.Description, i.Type)
	}
	for _, rules := range allMatchingRules(i) {
		if err := rules.Validate(); err != nil {
			return fmt.Errorf("pact: %q: %w", i.Description, err)
		}
	}
	return nil
}

func allMatchingRules(i Interaction) []matchers.MatchingRules {
	var all []matchers.MatchingRules
	if i.Request != nil && i.Request.Rules != nil {
		all = append(all, i.Request.Rules)
	}
	if i.Response != nil && i.Response.Rules != nil {
		all = append(all, i.Response.Rules)
	}
	if i.Message != nil && i.Message.Rules != nil {
		all = append(all, i.Message.Rules)
	}
	if i.MessageRequest != nil && i.MessageRequest.Rules != nil {
		all = append(all, i.MessageRequest.Rules)
	}
	if i.MessageResponse != nil && i.MessageResponse.Rules != nil {
		all = append(all, i.MessageResponse.Rules)
	}
	return all
}

// Pact is identified by the (consumer, provider) name pair and carries an
// ordered sequence of interactions.
type Pact struct {
	Consumer      Party
	Provider      Party
	Specification Specification
	Interactions  []Interaction
	Metadata      map[string]any
}

// New creates an empty pact with the default (V4) specification.
func New(consumer, provider string) *Pact {
	return &Pact{
		Consumer:      Party{Name: consumer},
		Provider:      Party{Name: provider},
		Specification: SpecV4,
	}
}

// Validate checks the invariants of §4.3: non-empty names, a known
// specification, unique interaction keys, and valid matching-rule
// selectors.
func (p *Pact) Validate() error {
	if strings.TrimSpace(p.Consumer.Name) == "" {
		return fmt.Errorf("pact: consumer.name must not be empty")
	}
	if strings.TrimSpace(p.Provider.Name) == "" {
		return fmt.Errorf("pact: provider.name must not be empty")
	}
	if p.Specification == "" {
		p.Specification = SpecV4
	}
	if !knownSpecifications[p.Specification] {
		return fmt.Errorf("pact: unknown specification %q", p.Specification)
	}
	seen := make(map[string]bool, len(p.Interactions))
	for _, i := range p.Interactions {
		if err := i.Validate(); err != nil {
			return err
		}
		key := i.Key()
		if seen[key] {
			return fmt.Errorf("pact: duplicate interaction key for description %q", i.Description)
		}
		seen[key] = true
	}
	return nil
}

// Append adds an interaction, replacing any existing interaction with the
// same Key (description + provider-state set), matching the merge-on-write
// replace semantics of §4.3 for in-memory construction too.
func (p *Pact) Append(i Interaction) {
	key := i.Key()
	for idx := range p.Interactions {
		if p.Interactions[idx].Key() == key {
			p.Interactions[idx] = i
			return
		}
	}
	p.Interactions = append(p.Interactions, i)
}
