package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredentials means neither an API key nor Bedrock is configured.
// Callers degrade to the keyword planner and canned worker responses.
var ErrNoCredentials = errors.New("no Anthropic API key configured and Bedrock disabled")

// CredentialSource identifies where the LLM credential was resolved from.
type CredentialSource string

const (
	SourceEnv     CredentialSource = "environment"
	SourceConfig  CredentialSource = "config_file"
	SourceBedrock CredentialSource = "bedrock"
	SourceNone    CredentialSource = "none"
)

// Credentials resolves the LLM credential in precedence order: the
// ANTHROPIC_API_KEY environment variable, then the configured key with
// env references expanded, then Bedrock, which authenticates through the
// AWS credential chain and needs no key.
func (c *Config) Credentials() (string, CredentialSource, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, SourceEnv, nil
	}
	if c != nil && c.Anthropic.APIKey != "" {
		key := os.ExpandEnv(c.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, SourceConfig, nil
		}
	}
	if c != nil && c.Bedrock.Enabled {
		return "", SourceBedrock, nil
	}
	return "", SourceNone, ErrNoCredentials
}

// ValidateKeyFormat checks the shape of a literal API key without calling
// the API. A value carrying an env reference is not a literal key and
// passes unchecked.
func ValidateKeyFormat(key string) error {
	if strings.Contains(key, "${") {
		return nil
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return fmt.Errorf("invalid API key format: key too short")
	}
	return nil
}

// MaskKey returns a display form of an API key: the sk-ant- prefix and
// the last four characters.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
