package config

import (
	"context"
	"fmt"
	"os"
)

// AWSConfigProvider implements Provider using AWS Secrets Manager for the
// keys stored in the secret and environment variables for everything else.
type AWSConfigProvider struct {
	secretsProvider Provider
	envProvider     Provider
}

// NewAWSConfigProvider creates a new AWS configuration provider
func NewAWSConfigProvider() (Provider, error) {
	secretName := os.Getenv("AWS_SECRET_NAME")
	if secretName == "" {
		return nil, fmt.Errorf("AWS_SECRET_NAME environment variable not set")
	}

	secretsProvider, err := NewAWSSecretsProvider(secretName)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS secrets provider: %w", err)
	}

	return NewAWSConfigProviderWith(secretsProvider, NewEnvProvider("")), nil
}

// NewAWSConfigProviderWith combines an existing secrets provider with a fallback provider
func NewAWSConfigProviderWith(secrets, fallback Provider) Provider {
	return &AWSConfigProvider{
		secretsProvider: secrets,
		envProvider:     fallback,
	}
}

// GetEnvironment returns the current environment
func (p *AWSConfigProvider) GetEnvironment() Environment {
	return p.secretsProvider.GetEnvironment()
}

// GetString retrieves a string configuration value
func (p *AWSConfigProvider) GetString(ctx context.Context, key string) (string, error) {
	value, err := p.secretsProvider.GetString(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallback, envErr := p.envProvider.GetString(ctx, key); envErr == nil {
		return fallback, nil
	}
	return "", err
}

// GetInt retrieves an integer configuration value
func (p *AWSConfigProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.secretsProvider.GetInt(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallback, envErr := p.envProvider.GetInt(ctx, key); envErr == nil {
		return fallback, nil
	}
	return 0, err
}

// GetBool retrieves a boolean configuration value
func (p *AWSConfigProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.secretsProvider.GetBool(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallback, envErr := p.envProvider.GetBool(ctx, key); envErr == nil {
		return fallback, nil
	}
	return false, err
}

// GetSecret retrieves a secret value. Secrets never fall back to the environment.
func (p *AWSConfigProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.secretsProvider.GetSecret(ctx, key)
}

// NewProviderFromEnv returns the AWS provider when AWS_SECRET_NAME is set and
// the plain environment provider otherwise
func NewProviderFromEnv() (Provider, error) {
	if os.Getenv("AWS_SECRET_NAME") == "" {
		return NewEnvProvider(""), nil
	}
	return NewAWSConfigProvider()
}
