package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pact-foundation/pact-go/pkg/broker"
	"github.com/pact-foundation/pact-go/pkg/logging"
	"github.com/pact-foundation/pact-go/pkg/provider"
)

// Exit codes per the verifier's CLI contract (§6.4): 0 success, 1 one or
// more non-pending failures, 2 configuration error, 3 source fetch
// failure.
const (
	exitSuccess       = 0
	exitFailures      = 1
	exitConfigError   = 2
	exitSourceFailure = 3
)

type verifierFlags struct {
	config string

	provider   string
	baseURL    string
	pathPrefix string

	pactURL       string // local path or remote URL, per §6.4's "--pact-url"
	pactDir       string
	pactBrokerURL string

	brokerUsername string
	brokerPassword string
	brokerToken    string

	statesSetupURL     string
	stateChangeAsBody  bool
	consumerSelectors  []string
	includeWipSince    string
	enablePending      bool
	publishResults     bool
	providerAppVersion string
	providerBranch     string
	providerTags       []string
	customHeaders      []string

	filterDescription string
	filterState       string
	filterConsumer    []string

	logLevel  string
	logOutput string
	logFile   string
}

// verifyOutcome carries what RunE produced back out to run(), since
// cobra's Execute() only reports flag-parsing/usage errors, not the
// verification result itself.
type verifyOutcome struct {
	report *provider.VerificationReport
	err    error
}

func newRootCommand(stdout, stderr io.Writer, outcome *verifyOutcome) (*cobra.Command, *verifierFlags) {
	f := &verifierFlags{}

	cmd := &cobra.Command{
		Use:   "pact-verifier",
		Short: "Replay recorded pacts against a running provider",
		Long: `pact-verifier loads pacts from a file, a directory, a URL, or a Pact
Broker, replays each recorded interaction against a running provider, and
reports mismatches.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.config != "" {
				cfg, err := provider.LoadConfig(f.config)
				if err != nil {
					return err
				}
				mergeConfig(f, cfg, cmd.Flags())
			}

			if f.provider == "" {
				return fmt.Errorf("--provider is required")
			}
			if f.baseURL == "" {
				return fmt.Errorf("--provider-base-url is required")
			}
			if f.pactURL == "" && f.pactDir == "" && f.pactBrokerURL == "" {
				return fmt.Errorf("at least one of --pact-url, --pact-dir, --pact-broker-url is required")
			}

			log, flush, err := buildLogger(f, stderr)
			if err != nil {
				return err
			}
			defer flush()

			report, verErr := runVerify(cmd.Context(), f, log)
			outcome.report, outcome.err = report, verErr
			if report != nil {
				printReport(stdout, report)
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "", "Path to a YAML verifier configuration file; explicit flags override its values")
	flags.StringVar(&f.provider, "provider", "", "Name of the provider being verified (required)")
	flags.StringVar(&f.baseURL, "provider-base-url", "", "Base URL of the running provider (required)")
	flags.StringVar(&f.pathPrefix, "provider-path-prefix", "", "Path prefix prepended to every replayed request")

	flags.StringVar(&f.pactURL, "pact-url", "", "Local path or remote URL of a single pact file")
	flags.StringVar(&f.pactDir, "pact-dir", "", "Directory of pact files (non-recursive)")
	flags.StringVar(&f.pactBrokerURL, "pact-broker-url", "", "Pact Broker base URL (enables broker-sourced verification)")

	flags.StringVar(&f.brokerUsername, "broker-username", "", "Pact Broker Basic auth username")
	flags.StringVar(&f.brokerPassword, "broker-password", "", "Pact Broker Basic auth password")
	flags.StringVar(&f.brokerToken, "broker-token", "", "Pact Broker Bearer auth token")

	flags.StringVar(&f.statesSetupURL, "provider-states-setup-url", "", "URL the verifier calls to set up/tear down provider states")
	flags.BoolVar(&f.stateChangeAsBody, "state-change-as-body", true, "POST state changes as a JSON body instead of GET with query parameters")
	flags.StringArrayVar(&f.consumerSelectors, "consumer-version-selector", nil, "JSON consumer-version-selector (repeatable)")
	flags.StringVar(&f.includeWipSince, "include-wip-pacts-since", "", "Include WIP pacts created since this RFC3339 date")
	flags.BoolVar(&f.enablePending, "enable-pending", false, "Allow pending interactions to fail without failing the run")
	flags.BoolVar(&f.publishResults, "publish-verification-results", false, "Publish verification results back to the broker")
	flags.StringVar(&f.providerAppVersion, "provider-app-version", "", "Provider application version to publish results against")
	flags.StringVar(&f.providerBranch, "provider-version-branch", "", "Provider version branch to publish/tag")
	flags.StringArrayVar(&f.providerTags, "provider-version-tag", nil, "Provider version tag (repeatable)")
	flags.StringArrayVar(&f.customHeaders, "custom-provider-header", nil, "Static \"Header: value\" sent with every replayed request (repeatable)")

	flags.StringVar(&f.filterDescription, "filter-description", "", "Only verify interactions whose description matches this regex")
	flags.StringVar(&f.filterState, "filter-state", "", "Only verify interactions with a provider state matching this regex")
	flags.StringArrayVar(&f.filterConsumer, "filter-consumer", nil, "Only verify pacts from this consumer (repeatable)")

	flags.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logOutput, "log-output", "stderr", "Log output (stderr, file, buffer)")
	flags.StringVar(&f.logFile, "log-file", "", "Log file path, used when --log-output=file")

	return cmd, f
}

// run executes the CLI and returns a process exit code. It is split out
// from main so testscript can drive it as an in-process binary.
func run(args []string, stdout, stderr io.Writer) int {
	var outcome verifyOutcome
	cmd, _ := newRootCommand(stdout, stderr, &outcome)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "pact-verifier: %v\n", err)
		return exitConfigError
	}

	if outcome.report == nil {
		fmt.Fprintf(stderr, "pact-verifier: %v\n", outcome.err)
		return exitConfigError
	}

	switch {
	case len(outcome.report.SourceErrs) > 0:
		return exitSourceFailure
	case outcome.err != nil:
		var verErr *provider.VerificationError
		if errors.As(outcome.err, &verErr) {
			return exitFailures
		}
		return exitConfigError
	default:
		return exitSuccess
	}
}

// buildLogger constructs the operational logger per --log-level/--log-output
// and returns a flush function that must be deferred: for --log-output=file
// it closes the file; for --log-output=buffer it flushes the buffered
// records to stderr once the run has finished, so concurrent pact
// verification doesn't interleave log lines with progress output.
func buildLogger(f *verifierFlags, stderr io.Writer) (*slog.Logger, func(), error) {
	cfg := logging.Config{Level: logging.ParseLevel(f.logLevel), Format: logging.FormatText}

	switch f.logOutput {
	case "stderr", "":
		cfg.Output = stderr
		return logging.New(cfg), func() {}, nil

	case "file":
		if f.logFile == "" {
			return nil, nil, fmt.Errorf("--log-output=file requires --log-file")
		}
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening --log-file %q: %w", f.logFile, err)
		}
		cfg.Output = file
		return logging.New(cfg), func() { _ = file.Close() }, nil

	case "buffer":
		var buf bytes.Buffer
		cfg.Output = &buf
		return logging.New(cfg), func() { _, _ = stderr.Write(buf.Bytes()) }, nil

	default:
		return nil, nil, fmt.Errorf("invalid --log-output %q: want stderr, file, or buffer", f.logOutput)
	}
}

// mergeConfig copies values from a --config file into f, but only for
// flags the user didn't pass explicitly on the command line: flags always
// win over the file, so a checked-in config can still be overridden for a
// one-off run.
func mergeConfig(f *verifierFlags, cfg *provider.Config, flags *pflag.FlagSet) {
	changed := flags.Changed

	if !changed("provider") && cfg.Provider != "" {
		f.provider = cfg.Provider
	}
	if !changed("provider-base-url") && cfg.BaseURL != "" {
		f.baseURL = cfg.BaseURL
	}
	if !changed("provider-path-prefix") && cfg.PathPrefix != "" {
		f.pathPrefix = cfg.PathPrefix
	}
	if !changed("pact-url") && cfg.PactURL != "" {
		f.pactURL = cfg.PactURL
	}
	if !changed("pact-dir") && cfg.PactDir != "" {
		f.pactDir = cfg.PactDir
	}
	if !changed("pact-broker-url") && cfg.PactBrokerURL != "" {
		f.pactBrokerURL = cfg.PactBrokerURL
	}
	if !changed("broker-username") && cfg.BrokerUsername != "" {
		f.brokerUsername = cfg.BrokerUsername
	}
	if !changed("broker-password") && cfg.BrokerPassword != "" {
		f.brokerPassword = cfg.BrokerPassword
	}
	if !changed("broker-token") && cfg.BrokerToken != "" {
		f.brokerToken = cfg.BrokerToken
	}
	if !changed("provider-states-setup-url") && cfg.ProviderStatesSetupURL != "" {
		f.statesSetupURL = cfg.ProviderStatesSetupURL
	}
	if !changed("state-change-as-body") && cfg.StateChangeAsBody {
		f.stateChangeAsBody = cfg.StateChangeAsBody
	}
	if !changed("consumer-version-selector") && len(cfg.ConsumerVersionSelectors) > 0 {
		f.consumerSelectors = cfg.ConsumerVersionSelectors
	}
	if !changed("include-wip-pacts-since") && cfg.IncludeWipPactsSince != "" {
		f.includeWipSince = cfg.IncludeWipPactsSince
	}
	if !changed("enable-pending") && cfg.EnablePending {
		f.enablePending = cfg.EnablePending
	}
	if !changed("publish-verification-results") && cfg.PublishVerificationResults {
		f.publishResults = cfg.PublishVerificationResults
	}
	if !changed("provider-app-version") && cfg.ProviderApplicationVersion != "" {
		f.providerAppVersion = cfg.ProviderApplicationVersion
	}
	if !changed("provider-version-branch") && cfg.ProviderVersionBranch != "" {
		f.providerBranch = cfg.ProviderVersionBranch
	}
	if !changed("provider-version-tag") && len(cfg.ProviderVersionTags) > 0 {
		f.providerTags = cfg.ProviderVersionTags
	}
	if !changed("custom-provider-header") && len(cfg.CustomProviderHeaders) > 0 {
		for name, value := range cfg.CustomProviderHeaders {
			f.customHeaders = append(f.customHeaders, name+": "+value)
		}
	}
	if !changed("filter-description") && cfg.FilterDescription != "" {
		f.filterDescription = cfg.FilterDescription
	}
	if !changed("filter-state") && cfg.FilterState != "" {
		f.filterState = cfg.FilterState
	}
	if !changed("filter-consumer") && len(cfg.FilterConsumers) > 0 {
		f.filterConsumer = cfg.FilterConsumers
	}
}

func parseSelectors(raw []string) ([]broker.Selector, error) {
	selectors := make([]broker.Selector, 0, len(raw))
	for _, s := range raw {
		var sel broker.Selector
		if err := json.Unmarshal([]byte(s), &sel); err != nil {
			return nil, fmt.Errorf("invalid --consumer-version-selector %q: %w", s, err)
		}
		selectors = append(selectors, sel)
	}
	return selectors, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := map[string]string{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --custom-provider-header %q: want \"Name: value\"", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func brokerAuth(f *verifierFlags) broker.Auth {
	switch {
	case f.brokerToken != "":
		return broker.BearerAuth(f.brokerToken)
	case f.brokerUsername != "" || f.brokerPassword != "":
		return broker.BasicAuth(f.brokerUsername, f.brokerPassword)
	default:
		return broker.Auth{}
	}
}

func runVerify(ctx context.Context, f *verifierFlags, log *slog.Logger) (*provider.VerificationReport, error) {
	v := provider.NewVerifier(f.provider).WithHTTPTransport(f.baseURL, f.pathPrefix).WithLogger(log)

	headers, err := parseHeaders(f.customHeaders)
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		v = v.WithCustomHeader(name, value)
	}

	if f.pactURL != "" {
		if strings.HasPrefix(f.pactURL, "http://") || strings.HasPrefix(f.pactURL, "https://") {
			v = v.WithPactURL(f.pactURL)
		} else {
			v = v.WithPactFile(f.pactURL)
		}
	}
	if f.pactDir != "" {
		v = v.WithPactDirectory(f.pactDir)
	}

	if f.pactBrokerURL != "" {
		brokerClient := broker.NewClient(f.pactBrokerURL, brokerAuth(f), broker.WithLogger(log))
		selectors, err := parseSelectors(f.consumerSelectors)
		if err != nil {
			return nil, err
		}
		v = v.WithBroker(brokerClient, broker.VerificationSelectors{
			Consumers:      selectors,
			IncludePending: f.enablePending,
			WIPSince:       f.includeWipSince,
		})
		if f.publishResults {
			v = v.WithPublish(f.providerAppVersion, f.providerBranch, f.providerTags)
		}
	}

	if f.statesSetupURL != "" {
		v = v.WithStateHandler(provider.StateHandlerURL(f.statesSetupURL, f.stateChangeAsBody))
	}

	if f.filterDescription != "" {
		v = v.WithFilterDescription(f.filterDescription)
	}
	if f.filterState != "" {
		v = v.WithFilterState(f.filterState)
	}
	if len(f.filterConsumer) > 0 {
		v = v.WithFilterConsumer(f.filterConsumer...)
	}

	v = v.WithEnablePending(f.enablePending)

	return v.Verify(ctx)
}

func printReport(w io.Writer, report *provider.VerificationReport) {
	for _, res := range report.Results {
		symbol := "PASS"
		switch res.Status {
		case provider.StatusFail:
			symbol = "FAIL"
		case provider.StatusPendingFail:
			symbol = "PENDING-FAIL"
		}
		fmt.Fprintf(w, "[%s] %s (%v)\n", symbol, res.Description, res.Duration)
		for _, m := range res.Mismatches {
			fmt.Fprintf(w, "    %s: %s\n", m.Selector, m.Message)
		}
	}
	for _, srcErr := range report.SourceErrs {
		fmt.Fprintf(w, "source error: %v\n", srcErr)
	}
	passed := len(report.Results) - len(report.Failed())
	fmt.Fprintf(w, "\n%d/%d interactions passed\n", passed, len(report.Results))
}
