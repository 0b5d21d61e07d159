package provider

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pact-foundation/pact-go/pkg/broker"
	"github.com/pact-foundation/pact-go/pkg/generate"
	"github.com/pact-foundation/pact-go/pkg/logging"
	"github.com/pact-foundation/pact-go/pkg/match"
	"github.com/pact-foundation/pact-go/pkg/pact"
	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

const (
	defaultInteractionTimeout = 30 * time.Second
	defaultParallelism        = 8
)

// Status is the outcome of one verified interaction.
type Status string

const (
	StatusPass        Status = "pass"
	StatusFail        Status = "fail"
	StatusPendingFail Status = "pending-fail"
)

// InteractionResult is the per-interaction record of §4.6 step 6.
type InteractionResult struct {
	PactConsumer string
	Description  string
	States       []string
	Status       Status
	Mismatches   []match.Mismatch
	Duration     time.Duration
}

// VerificationReport aggregates every InteractionResult of a Verify run.
type VerificationReport struct {
	Results    []InteractionResult
	SourceErrs []error
}

// Failed returns every non-pending failing result.
func (r *VerificationReport) Failed() []InteractionResult {
	var out []InteractionResult
	for _, res := range r.Results {
		if res.Status == StatusFail {
			out = append(out, res)
		}
	}
	return out
}

// VerificationError is raised when Verify completes but at least one
// non-pending interaction failed (§4.6: "the call raises a
// VerificationError only if any non-pending interaction failed").
type VerificationError struct {
	Report *VerificationReport
}

func (e *VerificationError) Error() string {
	failed := e.Report.Failed()
	return fmt.Sprintf("provider: verification failed: %d interaction(s) did not match", len(failed))
}

// PublishConfig carries the provider-side publish-verification-results
// settings (§4.6, §6.4).
type PublishConfig struct {
	ProviderVersion string
	Branch          string
	Tags            []string
}

// Verifier is the fluent builder and runner of §4.6.
type Verifier struct {
	provider      string
	baseURL       string
	pathPrefix    string
	customHeaders http.Header

	sources []pactSource

	filterDescription *regexp.Regexp
	filterState       *regexp.Regexp
	filterConsumers   map[string]bool

	stateHandler   StateHandler
	messageHandler MessageHandler

	enablePending bool
	parallel      bool
	parallelism   int
	timeout       time.Duration

	publish      *PublishConfig
	brokerClient *broker.Client

	httpClient *http.Client
	log        *slog.Logger
	seed       uint64
	seedSet    bool

	err error
}

// NewVerifier starts a Verifier for the named provider.
func NewVerifier(providerName string) *Verifier {
	v := &Verifier{
		provider:    providerName,
		pathPrefix:  "",
		timeout:     defaultInteractionTimeout,
		parallelism: defaultParallelism,
		httpClient:  &http.Client{Timeout: defaultInteractionTimeout},
		log:         logging.Nop(),
	}
	if providerName == "" {
		v.fail("provider: NewVerifier: provider name must not be empty")
	}
	return v
}

func (v *Verifier) fail(msg string) {
	if v.err == nil {
		v.err = pacterr.NewConfigError(msg, nil)
	}
}

// WithHTTPTransport configures the provider's HTTP base URL and an
// optional path prefix prepended to every interaction's expected path.
func (v *Verifier) WithHTTPTransport(baseURL, pathPrefix string) *Verifier {
	v.baseURL = baseURL
	v.pathPrefix = pathPrefix
	return v
}

// WithTimeout overrides the per-interaction HTTP timeout (default 30s,
// per §5).
func (v *Verifier) WithTimeout(d time.Duration) *Verifier {
	if d > 0 {
		v.timeout = d
		v.httpClient.Timeout = d
	}
	return v
}

// WithHTTPClient overrides the HTTP client used to replay requests.
func (v *Verifier) WithHTTPClient(c *http.Client) *Verifier {
	if c != nil {
		v.httpClient = c
	}
	return v
}

// WithLogger sets the verifier's operational logger.
func (v *Verifier) WithLogger(log *slog.Logger) *Verifier {
	if log != nil {
		v.log = log
	}
	return v
}

// WithSeed pins the GenEngine's PRNG seed for deterministic request
// rendering across runs.
func (v *Verifier) WithSeed(seed uint64) *Verifier {
	v.seed = seed
	v.seedSet = true
	return v
}

// WithCustomHeader adds a static header applied to every HTTP replay
// (§4.6's "custom request headers (static)").
func (v *Verifier) WithCustomHeader(name, value string) *Verifier {
	if v.customHeaders == nil {
		v.customHeaders = http.Header{}
	}
	v.customHeaders.Add(name, value)
	return v
}

// WithPactFile adds a single pact file source.
func (v *Verifier) WithPactFile(path string) *Verifier {
	v.sources = append(v.sources, pactSource{kind: sourceFile, path: path})
	return v
}

// WithPactDirectory adds a directory source, scanned (non-recursively) for
// "*.json" pact files.
func (v *Verifier) WithPactDirectory(dir string) *Verifier {
	v.sources = append(v.sources, pactSource{kind: sourceDirectory, path: dir})
	return v
}

// WithPactURL adds a single pact-by-URL source.
func (v *Verifier) WithPactURL(url string) *Verifier {
	v.sources = append(v.sources, pactSource{kind: sourceURL, path: url})
	return v
}

// WithBroker adds a broker descriptor source: the given client is used to
// fetch every pact matching selectors for this verifier's provider, and is
// reused afterwards to publish verification results if WithPublish was
// also called.
func (v *Verifier) WithBroker(client *broker.Client, selectors broker.VerificationSelectors) *Verifier {
	if client == nil {
		v.fail("provider: WithBroker: client must not be nil")
		return v
	}
	v.brokerClient = client
	v.sources = append(v.sources, pactSource{kind: sourceBroker, provider: v.provider, selectors: selectors, client: client})
	return v
}

// WithEnablePending allows pending interactions (§3.1, §4.6) to be
// verified without their failures counting against the overall result.
func (v *Verifier) WithEnablePending(enabled bool) *Verifier {
	v.enablePending = enabled
	return v
}

// WithFilterDescription restricts verification to interactions whose
// description matches pattern.
func (v *Verifier) WithFilterDescription(pattern string) *Verifier {
	re, err := regexp.Compile(pattern)
	if err != nil {
		v.fail(fmt.Sprintf("provider: WithFilterDescription: %v", err))
		return v
	}
	v.filterDescription = re
	return v
}

// WithFilterState restricts verification to interactions with at least one
// provider state matching pattern.
func (v *Verifier) WithFilterState(pattern string) *Verifier {
	re, err := regexp.Compile(pattern)
	if err != nil {
		v.fail(fmt.Sprintf("provider: WithFilterState: %v", err))
		return v
	}
	v.filterState = re
	return v
}

// WithFilterConsumer restricts verification to pacts from the given
// consumers.
func (v *Verifier) WithFilterConsumer(names ...string) *Verifier {
	if v.filterConsumers == nil {
		v.filterConsumers = map[string]bool{}
	}
	for _, n := range names {
		v.filterConsumers[n] = true
	}
	return v
}

// WithStateHandler configures how provider states are set up and torn down.
func (v *Verifier) WithStateHandler(h StateHandler) *Verifier {
	v.stateHandler = h
	return v
}

// WithMessageHandler configures how message interactions' actual contents
// are produced.
func (v *Verifier) WithMessageHandler(h MessageHandler) *Verifier {
	v.messageHandler = h
	return v
}

// WithPublish configures publish-on-completion of verification results
// (broker-sourced pacts only).
func (v *Verifier) WithPublish(version, branch string, tags []string) *Verifier {
	v.publish = &PublishConfig{ProviderVersion: version, Branch: branch, Tags: tags}
	return v
}

// WithParallel enables pact-level (never interaction-level) concurrency,
// per §4.6's "Parallelism is off by default".
func (v *Verifier) WithParallel(enabled bool) *Verifier {
	v.parallel = enabled
	return v
}

func (v *Verifier) includeInteraction(consumerName string, i pact.Interaction) bool {
	if v.filterConsumers != nil && !v.filterConsumers[consumerName] {
		return false
	}
	if v.filterDescription != nil && !v.filterDescription.MatchString(i.Description) {
		return false
	}
	if v.filterState != nil {
		matched := false
		for _, s := range i.ProviderStates {
			if v.filterState.MatchString(s.Name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Verify runs the full algorithm of §4.6 against every loaded pact source
// and returns the aggregated report. It returns a *pacterr.ConfigError if
// the builder was misconfigured, or a *VerificationError if verification
// completed but at least one non-pending interaction failed.
func (v *Verifier) Verify(ctx context.Context) (*VerificationReport, error) {
	if v.err != nil {
		return nil, v.err
	}
	if v.provider == "" {
		return nil, pacterr.NewConfigError("provider: Verify: provider name must not be empty", nil)
	}
	if len(v.sources) == 0 {
		return nil, pacterr.NewConfigError("provider: Verify: at least one pact source must be configured", nil)
	}

	loaded, sourceErrs := v.loadSources(ctx)
	report := &VerificationReport{SourceErrs: sourceErrs}

	seed := v.seed
	if !v.seedSet {
		seed = randomSeed()
	}
	genCtx := generate.NewContext(seed, v.baseURL, nil)

	if v.parallel && len(loaded) > 1 {
		report.Results = v.verifyParallel(ctx, loaded, genCtx)
	} else {
		for _, lp := range loaded {
			report.Results = append(report.Results, v.verifyPact(ctx, lp, genCtx)...)
		}
	}

	if v.publish != nil {
		v.publishResults(ctx, loaded, report)
	}

	for _, res := range report.Results {
		if res.Status == StatusFail {
			return report, &VerificationError{Report: report}
		}
	}
	return report, nil
}

func (v *Verifier) verifyParallel(ctx context.Context, loaded []*loadedPact, genCtx *generate.Context) []InteractionResult {
	limit := v.parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}
	sem := make(chan struct{}, limit)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var all []InteractionResult

	for _, lp := range loaded {
		wg.Add(1)
		sem <- struct{}{}
		go func(lp *loadedPact) {
			defer wg.Done()
			defer func() { <-sem }()
			results := v.verifyPact(ctx, lp, genCtx)
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
		}(lp)
	}
	wg.Wait()
	return all
}

// verifyPact verifies every (filtered) interaction of one pact, strictly in
// recorded order — never in parallel within a pact, since state setup is
// shared (§4.6's ordering guarantee).
func (v *Verifier) verifyPact(ctx context.Context, lp *loadedPact, genCtx *generate.Context) []InteractionResult {
	var results []InteractionResult
	for _, interaction := range lp.pact.Interactions {
		if !v.includeInteraction(lp.pact.Consumer.Name, interaction) {
			continue
		}
		results = append(results, v.verifyInteraction(ctx, lp.pact.Consumer.Name, interaction, genCtx))
	}
	return results
}

func (v *Verifier) verifyInteraction(ctx context.Context, consumerName string, interaction pact.Interaction, genCtx *generate.Context) InteractionResult {
	start := time.Now()
	states := stateNames(interaction.ProviderStates)
	result := InteractionResult{PactConsumer: consumerName, Description: interaction.Description, States: states}

	var mismatches []match.Mismatch

	for _, state := range interaction.ProviderStates {
		if !v.stateHandler.IsZero() {
			if err := v.stateHandler.Invoke(ctx, v.httpClient, state.Name, ActionSetup, state.Parameters); err != nil {
				mismatches = append(mismatches, match.Mismatch{Selector: state.Name, Message: err.Error()})
			}
		}
	}

	if len(mismatches) == 0 {
		dispatchMismatches, err := v.dispatch(ctx, interaction, genCtx)
		if err != nil {
			mismatches = append(mismatches, match.Mismatch{Message: err.Error()})
		} else {
			mismatches = append(mismatches, dispatchMismatches...)
		}
	}

	for _, state := range interaction.ProviderStates {
		if !v.stateHandler.IsZero() {
			if err := v.stateHandler.Invoke(ctx, v.httpClient, state.Name, ActionTeardown, state.Parameters); err != nil {
				v.log.Warn("provider: teardown failed", "state", state.Name, "error", err)
			}
		}
	}

	result.Mismatches = mismatches
	result.Duration = time.Since(start)
	switch {
	case len(mismatches) == 0:
		result.Status = StatusPass
	case interaction.Pending && v.enablePending:
		result.Status = StatusPendingFail
	default:
		result.Status = StatusFail
	}
	return result
}

func (v *Verifier) dispatch(ctx context.Context, interaction pact.Interaction, genCtx *generate.Context) ([]match.Mismatch, error) {
	switch interaction.Type {
	case pact.TypeSynchronousHTTP:
		return v.dispatchHTTP(ctx, interaction, genCtx)
	case pact.TypeAsynchronousMessage:
		return v.dispatchMessage(ctx, interaction)
	default:
		return nil, fmt.Errorf("provider: unsupported interaction type %q for verification", interaction.Type)
	}
}

func (v *Verifier) dispatchHTTP(ctx context.Context, interaction pact.Interaction, genCtx *generate.Context) ([]match.Mismatch, error) {
	req, err := buildReplayRequest(ctx, genCtx, v.baseURL, v.pathPrefix, v.customHeaders, interaction.Request)
	if err != nil {
		return nil, fmt.Errorf("building replay request: %w", err)
	}
	actual, err := actualRequestResponse(v.httpClient, req)
	if err != nil {
		return nil, pacterr.NewTransportError(v.baseURL, err)
	}
	return match.MatchResponse(interaction.Response, actual), nil
}

func (v *Verifier) dispatchMessage(ctx context.Context, interaction pact.Interaction) ([]match.Mismatch, error) {
	if v.messageHandler.IsZero() {
		return nil, fmt.Errorf("provider: no message handler configured for %q", interaction.Description)
	}
	actual, err := v.messageHandler.Produce(ctx, v.httpClient, interaction.Description, interaction.Message.Metadata)
	if err != nil {
		return nil, pacterr.NewHandlerError(interaction.Description, err)
	}
	return match.MatchMessage(interaction.Message, actual), nil
}

func (v *Verifier) publishResults(ctx context.Context, loaded []*loadedPact, report *VerificationReport) {
	byConsumer := map[string][]InteractionResult{}
	for _, res := range report.Results {
		byConsumer[res.PactConsumer] = append(byConsumer[res.PactConsumer], res)
	}

	for _, lp := range loaded {
		if lp.brokerHref == "" {
			continue
		}
		results := byConsumer[lp.pact.Consumer.Name]
		success := true
		var testResults []broker.TestResultEntry
		for _, res := range results {
			if res.Status == StatusFail {
				success = false
			}
			var msgs []string
			for _, m := range res.Mismatches {
				msgs = append(msgs, m.Message)
			}
			testResults = append(testResults, broker.TestResultEntry{
				InteractionID: res.Description,
				Success:       res.Status != StatusFail,
				Mismatches:    msgs,
			})
		}

		hash := extractPactVersionHash(lp.brokerHref)
		err := v.brokerClient.PublishVerificationResult(ctx, v.provider, lp.pact.Consumer.Name, hash, broker.VerificationResultPayload{
			Success:                    success,
			ProviderApplicationVersion: v.publish.ProviderVersion,
			Branch:                     v.publish.Branch,
			Tags:                       v.publish.Tags,
			TestResults:                testResults,
		})
		if err != nil {
			v.log.Error("provider: publishing verification result failed", "consumer", lp.pact.Consumer.Name, "error", err)
		}
	}
}

func extractPactVersionHash(href string) string {
	const marker = "/pact-version/"
	idx := strings.LastIndex(href, marker)
	if idx < 0 {
		return href
	}
	rest := href[idx+len(marker):]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[:slash]
	}
	return rest
}

func randomSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func stateNames(states []pact.ProviderState) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}
