package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/generate"
	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

// buildReplayRequest turns an expected request into a real *http.Request
// against baseURL+pathPrefix, applying every generator at its structural
// site (path, each query value, each header value, body) rather than
// trying to classify a flat selector by pattern — pact.Request.Generators
// has no per-category split the way pact.Request.Rules does, so the safest
// resolution is to look each known site up by its own selector instead of
// guessing its category from the selector's shape.
func buildReplayRequest(ctx context.Context, genCtx *generate.Context, baseURL, pathPrefix string, headers http.Header, expected *pact.Request) (*http.Request, error) {
	path := expected.Path
	if gen, ok := expected.Generators["$.path"]; ok {
		v, err := generate.Generate(genCtx, gen)
		if err != nil {
			return nil, fmt.Errorf("generating path: %w", err)
		}
		path = fmt.Sprint(v)
	}

	target, err := url.Parse(strings.TrimRight(baseURL, "/") + pathPrefix + path)
	if err != nil {
		return nil, fmt.Errorf("building request URL: %w", err)
	}

	query := url.Values{}
	for name, values := range expected.Query {
		rendered, err := renderMultiValue(genCtx, expected.Generators, name, values)
		if err != nil {
			return nil, fmt.Errorf("generating query parameter %q: %w", name, err)
		}
		query[name] = rendered
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var bodyBytes []byte
	var contentType string
	if expected.Body != nil {
		rendered, err := renderRequestBody(genCtx, expected.Body, expected.Generators)
		if err != nil {
			return nil, fmt.Errorf("rendering body: %w", err)
		}
		bodyBytes = rendered
		contentType = expected.Body.ContentType
	}

	req, err := http.NewRequestWithContext(ctx, expected.Method, target.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	for name, values := range expected.Headers {
		rendered, err := renderMultiValue(genCtx, expected.Generators, name, values)
		if err != nil {
			return nil, fmt.Errorf("generating header %q: %w", name, err)
		}
		for _, v := range rendered {
			req.Header.Add(name, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}

func renderMultiValue(ctx *generate.Context, gens matchers.GeneratorTree, selector string, values []string) ([]string, error) {
	gen, ok := gens[selector]
	if !ok {
		return values, nil
	}
	v, err := generate.Generate(ctx, gen)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprint(v)}, nil
}

// renderRequestBody applies every "$"-prefixed generator (the reserved
// "$.path" key aside) to the expected body's content, mirroring
// pkg/consumer's MockServer response-body renderer.
func renderRequestBody(ctx *generate.Context, body *pact.Body, gens matchers.GeneratorTree) ([]byte, error) {
	bodyGens := matchers.GeneratorTree{}
	for selector, gen := range gens {
		if selector == "$.path" {
			continue
		}
		if strings.HasPrefix(selector, "$") {
			bodyGens[selector] = gen
		}
	}
	if len(bodyGens) == 0 || !strings.Contains(strings.ToLower(body.ContentType), "json") {
		return body.Bytes, nil
	}
	rendered, err := generate.ApplyToJSON(ctx, body.Content, bodyGens)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rendered)
}

// actualRequestResponse performs the blocking HTTP call (§4.6's "Send via
// blocking HTTP client. Capture response.") and decodes the response into
// the in-memory pact.Response model MatchResponse compares against.
func actualRequestResponse(client *http.Client, req *http.Request) (*pact.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading provider response body: %w", err)
	}

	headers := map[string][]string(resp.Header)
	actual := &pact.Response{Status: resp.StatusCode, Headers: headers}
	if len(raw) > 0 {
		contentType := resp.Header.Get("Content-Type")
		actual.Body = &pact.Body{ContentType: contentType, Bytes: raw}
		if strings.Contains(strings.ToLower(contentType), "json") {
			var decoded any
			if jsonErr := json.Unmarshal(raw, &decoded); jsonErr == nil {
				actual.Body.Content = decoded
			}
		}
	}
	return actual, nil
}
