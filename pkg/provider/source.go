package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/broker"
	"github.com/pact-foundation/pact-go/pkg/pact"
	"github.com/pact-foundation/pact-go/pkg/pacterr"
	"github.com/pact-foundation/pact-go/pkg/util"
)

type sourceKind int

const (
	sourceFile sourceKind = iota
	sourceDirectory
	sourceURL
	sourceBroker
)

type pactSource struct {
	kind      sourceKind
	path      string
	provider  string
	selectors broker.VerificationSelectors
	client    *broker.Client
}

// loadedPact is one pact ready for verification together with enough
// origin information to publish a verification result back, when it came
// from a broker.
type loadedPact struct {
	pact       *pact.Pact
	origin     string
	brokerHref string
}

// loadSources resolves every configured source into loaded pacts. A
// per-source failure is recorded as a *pacterr.SourceError in errs but
// does not stop the remaining sources from loading (§7's "verifier
// continues if other sources remain").
func (v *Verifier) loadSources(ctx context.Context) ([]*loadedPact, []error) {
	var loaded []*loadedPact
	var errs []error

	for _, src := range v.sources {
		switch src.kind {
		case sourceFile:
			p, err := loadPactFile(src.path)
			if err != nil {
				errs = append(errs, pacterr.NewSourceError(src.path, err))
				continue
			}
			loaded = append(loaded, &loadedPact{pact: p, origin: src.path})

		case sourceDirectory:
			found, fileErrs := loadPactDirectory(src.path)
			loaded = append(loaded, found...)
			errs = append(errs, fileErrs...)

		case sourceURL:
			p, err := loadPactURL(ctx, v.httpClient, src.path)
			if err != nil {
				errs = append(errs, pacterr.NewSourceError(src.path, err))
				continue
			}
			loaded = append(loaded, &loadedPact{pact: p, origin: src.path})

		case sourceBroker:
			fetched, err := src.client.FetchPacts(ctx, src.provider, src.selectors)
			if err != nil {
				errs = append(errs, pacterr.NewSourceError("broker:"+src.provider, err))
				continue
			}
			for _, f := range fetched {
				p, err := f.Decode()
				if err != nil {
					errs = append(errs, pacterr.NewSourceError(f.URL, err))
					continue
				}
				loaded = append(loaded, &loadedPact{pact: p, origin: f.URL, brokerHref: f.URL})
			}
		}
	}
	return loaded, errs
}

func loadPactFile(path string) (*pact.Pact, error) {
	if _, ok := util.SafeFilePathAllowAbsolute(path); !ok {
		return nil, fmt.Errorf("refusing unsafe pact file path %q", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pact file: %w", err)
	}
	p, err := pact.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding pact file: %w", err)
	}
	return p, nil
}

func loadPactDirectory(dir string) ([]*loadedPact, []error) {
	var loaded []*loadedPact
	var errs []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{pacterr.NewSourceError(dir, fmt.Errorf("reading pact directory: %w", err))}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := loadPactFile(path)
		if err != nil {
			errs = append(errs, pacterr.NewSourceError(path, err))
			continue
		}
		loaded = append(loaded, &loadedPact{pact: p, origin: path})
	}
	return loaded, errs
}

func loadPactURL(ctx context.Context, client *http.Client, target string) (*pact.Pact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching pact URL: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading pact URL body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pact URL returned %d", resp.StatusCode)
	}
	return pact.Decode(raw)
}
