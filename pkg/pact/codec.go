package pact

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// Canonical JSON layout, §6.1. Struct field order is Go's marshaling order
// for struct types (encoding/json always marshals fields in declaration
// order) and map keys are marshaled in sorted order by the standard
// library, together giving byte-stable output without a hand-rolled
// writer — this is the "encoder writes keys in a fixed order" requirement
// of §4.3, achieved by shaping these wire structs rather than by a custom
// serializer.
//
// Decoding is strict about the fields this package requires (a missing
// consumer or provider name, an unrecognized interaction "type" discriminator) and
// silently ignores unknown fields, matching the "tolerant about unknown
// fields" requirement — this is encoding/json's default decode behavior,
// not something this package has to implement.

type wirePact struct {
	Consumer     Party             `json:"consumer"`
	Provider     Party             `json:"provider"`
	Interactions []json.RawMessage `json:"interactions"`
	Metadata     wireMetadata      `json:"metadata"`
}

type wireMetadata struct {
	PactSpecification struct {
		Version string `json:"version"`
	} `json:"pactSpecification"`
	Extra map[string]any `json:"-"`
}

func (m wireMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"pactSpecification": map[string]string{"version": m.PactSpecification.Version},
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

func (m *wireMetadata) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Extra = map[string]any{}
	for k, v := range raw {
		if k == "pactSpecification" {
			if err := json.Unmarshal(v, &m.PactSpecification); err != nil {
				return err
			}
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		m.Extra[k] = val
	}
	return nil
}

type wireProviderState struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type wireBody struct {
	Content     any    `json:"content,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Encoded     bool   `json:"encoded,omitempty"`
}

type wireRequest struct {
	Method        string                 `json:"method"`
	Path          string                 `json:"path"`
	Query         map[string][]string    `json:"query,omitempty"`
	Headers       map[string][]string    `json:"headers,omitempty"`
	Body          *wireBody              `json:"body,omitempty"`
	MatchingRules matchers.MatchingRules `json:"matchingRules,omitempty"`
	Generators    matchers.GeneratorTree `json:"generators,omitempty"`
}

type wireResponse struct {
	Status        int                    `json:"status"`
	Headers       map[string][]string    `json:"headers,omitempty"`
	Body          *wireBody              `json:"body,omitempty"`
	MatchingRules matchers.MatchingRules `json:"matchingRules,omitempty"`
	Generators    matchers.GeneratorTree `json:"generators,omitempty"`
}

type wireMessage struct {
	Contents      any                    `json:"contents,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	ContentType   string                 `json:"contentType,omitempty"`
	MatchingRules matchers.MatchingRules `json:"matchingRules,omitempty"`
	Generators    matchers.GeneratorTree `json:"generators,omitempty"`
}

// wireCommon holds the fields shared by every interaction variant. It is
// embedded, never combined with variant-specific "request"/"response"
// fields in one struct — encoding/json treats two fields with the same
// JSON name in a single struct as a conflict and silently drops both, so
// each variant gets its own wire struct below instead.
type wireCommon struct {
	Type           InteractionType     `json:"type"`
	Description    string              `json:"description"`
	ProviderStates []wireProviderState `json:"providerStates,omitempty"`
	Pending        bool                `json:"pending,omitempty"`
	Comments       map[string]any      `json:"comments,omitempty"`
}

type wireInteraction struct {
	wireCommon
	Request  *wireRequest  `json:"request,omitempty"`
	Response *wireResponse `json:"response,omitempty"`
}

type wireAsyncInteraction struct {
	wireCommon
	Contents      any                    `json:"contents,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	ContentType   string                 `json:"contentType,omitempty"`
	MatchingRules matchers.MatchingRules `json:"matchingRules,omitempty"`
	Generators    matchers.GeneratorTree `json:"generators,omitempty"`
}

type wireSyncMessageInteraction struct {
	wireCommon
	MessageRequest  *wireMessage `json:"request,omitempty"`
	MessageResponse *wireMessage `json:"response,omitempty"`
}

// Encode renders the pact as canonical JSON.
func Encode(p *Pact) ([]byte, error) {
	w := wirePact{
		Consumer: p.Consumer,
		Provider: p.Provider,
	}
	w.Metadata.PactSpecification.Version = string(p.Specification)
	for _, interaction := range p.Interactions {
		raw, err := encodeInteraction(interaction)
		if err != nil {
			return nil, fmt.Errorf("pact: encoding interaction %q: %w", interaction.Description, err)
		}
		w.Interactions = append(w.Interactions, raw)
	}
	return json.MarshalIndent(w, "", "  ")
}

func encodeInteraction(i Interaction) (json.RawMessage, error) {
	states := make([]wireProviderState, len(i.ProviderStates))
	for idx, s := range i.ProviderStates {
		states[idx] = wireProviderState{Name: s.Name, Params: s.Parameters}
	}
	common := wireCommon{
		Type: i.Type, Description: i.Description, ProviderStates: states,
		Pending: i.Pending, Comments: i.Comments,
	}

	switch i.Type {
	case TypeSynchronousHTTP:
		req, err := encodeRequest(i.Request)
		if err != nil {
			return nil, err
		}
		resp, err := encodeResponse(i.Response)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireInteraction{wireCommon: common, Request: req, Response: resp})
	case TypeAsynchronousMessage:
		msg, err := encodeMessage(i.Message)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireAsyncInteraction{
			wireCommon:    common,
			Contents:      msg.Contents,
			Metadata:      msg.Metadata,
			ContentType:   msg.ContentType,
			MatchingRules: msg.MatchingRules,
			Generators:    msg.Generators,
		})
	case TypeSynchronousMessage:
		req, err := encodeMessage(i.MessageRequest)
		if err != nil {
			return nil, err
		}
		resp, err := encodeMessage(i.MessageResponse)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireSyncMessageInteraction{
			wireCommon: common, MessageRequest: req, MessageResponse: resp,
		})
	default:
		return nil, fmt.Errorf("unknown interaction type %q", i.Type)
	}
}

func encodeRequest(r *Request) (*wireRequest, error) {
	if r == nil {
		return nil, nil
	}
	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}
	return &wireRequest{
		Method: r.Method, Path: r.Path, Query: r.Query, Headers: r.Headers,
		Body: body, MatchingRules: r.Rules, Generators: r.Generators,
	}, nil
}

func encodeResponse(r *Response) (*wireResponse, error) {
	if r == nil {
		return nil, nil
	}
	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}
	return &wireResponse{
		Status: r.Status, Headers: r.Headers,
		Body: body, MatchingRules: r.Rules, Generators: r.Generators,
	}, nil
}

func encodeBody(b *Body) (*wireBody, error) {
	if b == nil {
		return nil, nil
	}
	wb := &wireBody{ContentType: b.ContentType}
	if b.Content != nil {
		wb.Content = b.Content
	} else if b.Bytes != nil {
		wb.Content = base64.StdEncoding.EncodeToString(b.Bytes)
		wb.Encoded = true
	}
	return wb, nil
}

func encodeMessage(m *MessageContents) (*wireMessage, error) {
	if m == nil {
		return nil, nil
	}
	return &wireMessage{
		Contents:      string(m.Contents),
		Metadata:      m.Metadata,
		ContentType:   m.ContentType,
		MatchingRules: m.Rules,
		Generators:    m.Generators,
	}, nil
}

// Decode parses a pact from canonical (or merely valid) JSON.
func Decode(data []byte) (*Pact, error) {
	var w wirePact
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("pact: decoding top level: %w", err)
	}
	if w.Consumer.Name == "" || w.Provider.Name == "" {
		return nil, fmt.Errorf("pact: decoding top level: consumer and provider names are required")
	}
	p := &Pact{
		Consumer:      w.Consumer,
		Provider:      w.Provider,
		Specification: Specification(w.Metadata.PactSpecification.Version),
		Metadata:      w.Metadata.Extra,
	}
	for _, raw := range w.Interactions {
		interaction, err := decodeInteraction(raw)
		if err != nil {
			return nil, fmt.Errorf("pact: decoding interaction: %w", err)
		}
		p.Interactions = append(p.Interactions, interaction)
	}
	return p, nil
}

func decodeInteraction(raw json.RawMessage) (Interaction, error) {
	var probe struct {
		Type InteractionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Interaction{}, err
	}

	switch probe.Type {
	case TypeSynchronousHTTP, "":
		var wi wireInteraction
		if err := json.Unmarshal(raw, &wi); err != nil {
			return Interaction{}, err
		}
		return fromWireHTTP(wi), nil
	case TypeAsynchronousMessage:
		var wa wireAsyncInteraction
		if err := json.Unmarshal(raw, &wa); err != nil {
			return Interaction{}, err
		}
		contentBytes, ct := contentToBytes(wa.Contents, wa.ContentType)
		i := fromWireCommon(wa.wireCommon)
		i.Message = &MessageContents{
			Contents:    contentBytes,
			Metadata:    wa.Metadata,
			ContentType: ct,
			Rules:       wa.MatchingRules,
			Generators:  wa.Generators,
		}
		return i, nil
	case TypeSynchronousMessage:
		var ws wireSyncMessageInteraction
		if err := json.Unmarshal(raw, &ws); err != nil {
			return Interaction{}, err
		}
		i := fromWireCommon(ws.wireCommon)
		if ws.MessageRequest != nil {
			bytes, ct := contentToBytes(ws.MessageRequest.Contents, ws.MessageRequest.ContentType)
			i.MessageRequest = &MessageContents{Contents: bytes, Metadata: ws.MessageRequest.Metadata, ContentType: ct, Rules: ws.MessageRequest.MatchingRules, Generators: ws.MessageRequest.Generators}
		}
		if ws.MessageResponse != nil {
			bytes, ct := contentToBytes(ws.MessageResponse.Contents, ws.MessageResponse.ContentType)
			i.MessageResponse = &MessageContents{Contents: bytes, Metadata: ws.MessageResponse.Metadata, ContentType: ct, Rules: ws.MessageResponse.MatchingRules, Generators: ws.MessageResponse.Generators}
		}
		return i, nil
	default:
		return Interaction{}, fmt.Errorf("unknown interaction type %q", probe.Type)
	}
}

func contentToBytes(v any, declaredContentType string) ([]byte, string) {
	ct := declaredContentType
	switch t := v.(type) {
	case string:
		if ct == "" {
			ct = "text/plain"
		}
		return []byte(t), ct
	case nil:
		return nil, ct
	default:
		b, _ := json.Marshal(t)
		if ct == "" {
			ct = "application/json"
		}
		return b, ct
	}
}

func fromWireCommon(c wireCommon) Interaction {
	states := make([]ProviderState, len(c.ProviderStates))
	for idx, s := range c.ProviderStates {
		states[idx] = ProviderState{Name: s.Name, Parameters: s.Params}
	}
	return Interaction{
		Type:           c.Type,
		Description:    c.Description,
		ProviderStates: states,
		Pending:        c.Pending,
		Comments:       c.Comments,
	}
}

func fromWireHTTP(wi wireInteraction) Interaction {
	i := fromWireCommon(wi.wireCommon)
	i.Type = TypeSynchronousHTTP
	if wi.Request != nil {
		i.Request = &Request{
			Method: wi.Request.Method, Path: wi.Request.Path,
			Query: wi.Request.Query, Headers: wi.Request.Headers,
			Body: decodeBody(wi.Request.Body),
			Rules: wi.Request.MatchingRules, Generators: wi.Request.Generators,
		}
	}
	if wi.Response != nil {
		i.Response = &Response{
			Status: wi.Response.Status, Headers: wi.Response.Headers,
			Body: decodeBody(wi.Response.Body),
			Rules: wi.Response.MatchingRules, Generators: wi.Response.Generators,
		}
	}
	return i
}

func decodeBody(wb *wireBody) *Body {
	if wb == nil {
		return nil
	}
	b := &Body{ContentType: wb.ContentType, Content: wb.Content}
	if wb.Encoded {
		if s, ok := wb.Content.(string); ok {
			if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
				b.Bytes = raw
				b.Content = nil
			}
		}
	}
	return b
}
