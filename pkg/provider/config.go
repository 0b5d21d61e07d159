package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

// Config is the on-disk shape of a verifier configuration file: everything
// the CLI's flags can set, so a verification run can be checked into a repo
// instead of reconstructed from a shell script. Flags passed alongside
// --config win over the file's values (see cmd/pact-verifier's merge).
type Config struct {
	Provider   string `yaml:"provider,omitempty"`
	BaseURL    string `yaml:"providerBaseUrl,omitempty"`
	PathPrefix string `yaml:"providerPathPrefix,omitempty"`

	PactURL       string `yaml:"pactUrl,omitempty"`
	PactDir       string `yaml:"pactDir,omitempty"`
	PactBrokerURL string `yaml:"pactBrokerUrl,omitempty"`

	BrokerUsername string `yaml:"brokerUsername,omitempty"`
	BrokerPassword string `yaml:"brokerPassword,omitempty"`
	BrokerToken    string `yaml:"brokerToken,omitempty"`

	ProviderStatesSetupURL     string            `yaml:"providerStatesSetupUrl,omitempty"`
	StateChangeAsBody          bool              `yaml:"stateChangeAsBody,omitempty"`
	ConsumerVersionSelectors   []string          `yaml:"consumerVersionSelectors,omitempty"`
	IncludeWipPactsSince       string            `yaml:"includeWipPactsSince,omitempty"`
	EnablePending              bool              `yaml:"enablePending,omitempty"`
	PublishVerificationResults bool              `yaml:"publishVerificationResults,omitempty"`
	ProviderApplicationVersion string            `yaml:"providerApplicationVersion,omitempty"`
	ProviderVersionBranch      string            `yaml:"providerVersionBranch,omitempty"`
	ProviderVersionTags        []string          `yaml:"providerVersionTags,omitempty"`
	CustomProviderHeaders      map[string]string `yaml:"customProviderHeaders,omitempty"`

	FilterDescription string   `yaml:"filterDescription,omitempty"`
	FilterState       string   `yaml:"filterState,omitempty"`
	FilterConsumers   []string `yaml:"filterConsumers,omitempty"`
}

// LoadConfig reads and parses a YAML verifier configuration file. A missing
// or malformed file is a pacterr.ConfigError, matching the propagation
// policy every other configuration-time failure in this package follows.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pacterr.NewConfigError(fmt.Sprintf("reading config file %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, pacterr.NewConfigError(fmt.Sprintf("parsing config file %s", path), err)
	}
	return &cfg, nil
}
