package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/pacterr"
)

func TestLoadConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verifier.yaml")
	content := `
provider: orders-service
providerBaseUrl: http://localhost:8080
pactBrokerUrl: https://broker.example.com
consumerVersionSelectors:
  - '{"mainBranch": true}'
publishVerificationResults: true
providerApplicationVersion: 1.2.3
providerVersionTags:
  - prod
  - regional
customProviderHeaders:
  Authorization: Bearer token
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "orders-service", cfg.Provider)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "https://broker.example.com", cfg.PactBrokerURL)
	assert.Equal(t, []string{`{"mainBranch": true}`}, cfg.ConsumerVersionSelectors)
	assert.True(t, cfg.PublishVerificationResults)
	assert.Equal(t, "1.2.3", cfg.ProviderApplicationVersion)
	assert.Equal(t, []string{"prod", "regional"}, cfg.ProviderVersionTags)
	assert.Equal(t, "Bearer token", cfg.CustomProviderHeaders["Authorization"])
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, cfg)
	var configErr *pacterr.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unterminated"), 0o644))

	cfg, err := LoadConfig(path)
	assert.Nil(t, cfg)
	var configErr *pacterr.ConfigError
	assert.ErrorAs(t, err, &configErr)
}
