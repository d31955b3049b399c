package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Cache providers
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CacheDynamoDB = "dynamodb"
)

var (
	dbNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	lowerPattern  = regexp.MustCompile(`[a-z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
	symbolPattern = regexp.MustCompile(`[^A-Za-z0-9]`)

	validSSLModes = map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider
func NewEnvProvider(prefix string) Provider {
	return &EnvProvider{
		prefix:      prefix,
		environment: currentEnvironment(),
	}
}

func currentEnvironment() Environment {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(Development)
	}
	return Environment(env)
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsProvider implements Provider using AWS Secrets Manager.
// The secret is a JSON object of string values; it is fetched once and
// then served from memory until the refresh interval elapses.
type AWSSecretsProvider struct {
	client      SecretsManagerAPI
	secretName  string
	environment Environment
	refresh     time.Duration

	mu        sync.Mutex
	cache     map[string]string
	lastFetch time.Time
}

// NewAWSSecretsProvider creates a new AWS Secrets Manager based configuration provider
func NewAWSSecretsProvider(secretName string) (*AWSSecretsProvider, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSecretsProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

// NewAWSSecretsProviderWithClient creates a Secrets Manager provider with a custom client
func NewAWSSecretsProviderWithClient(client SecretsManagerAPI, secretName string) *AWSSecretsProvider {
	return &AWSSecretsProvider{
		client:      client,
		secretName:  secretName,
		environment: currentEnvironment(),
		refresh:     15 * time.Minute,
	}
}

// GetEnvironment returns the current environment
func (p *AWSSecretsProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetString(ctx context.Context, key string) (string, error) {
	secrets, err := p.secrets(ctx)
	if err != nil {
		return "", err
	}

	value, ok := secrets[key]
	if !ok || value == "" {
		return "", fmt.Errorf("secret key %s not found", key)
	}
	return value, nil
}

func (p *AWSSecretsProvider) secrets(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil && time.Since(p.lastFetch) < p.refresh {
		return p.cache, nil
	}

	secret, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	if secret.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", p.secretName)
	}

	var secretMap map[string]string
	if err := json.Unmarshal([]byte(*secret.SecretString), &secretMap); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	if err := validateSecretSchema(secretMap, p.environment); err != nil {
		return nil, fmt.Errorf("invalid secret schema: %w", err)
	}

	p.cache = secretMap
	p.lastFetch = time.Now()
	return secretMap, nil
}

// GetInt retrieves an integer configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// DatabaseConfig holds the category store configuration
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	switch c.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return &ValidationError{Field: "SQLitePath", Message: "sqlite path cannot be empty"}
		}
		return nil
	case DriverMemory:
		if env == Production {
			return &ValidationError{Field: "Driver", Message: "memory driver is not allowed in production"}
		}
		return nil
	default:
		return &ValidationError{Field: "Driver", Message: fmt.Sprintf("unknown driver %q", c.Driver)}
	}

	if c.Host == "" {
		return &ValidationError{Field: "Host", Message: "host cannot be empty"}
	}
	if env == Production && strings.EqualFold(c.Host, "localhost") {
		return &ValidationError{Field: "Host", Message: "localhost is not allowed in production"}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	}

	if c.User == "" {
		return &ValidationError{Field: "User", Message: "user cannot be empty"}
	}

	if err := validatePassword("Password", c.Password, env); err != nil {
		return err
	}

	if c.DBName == "" {
		return &ValidationError{Field: "DBName", Message: "database name cannot be empty"}
	}
	if !dbNamePattern.MatchString(c.DBName) {
		return &ValidationError{Field: "DBName", Message: "database name must start with a letter and contain only letters, numbers, and underscores"}
	}

	if !validSSLModes[c.SSLMode] {
		return &ValidationError{Field: "SSLMode", Message: "invalid SSL mode"}
	}
	if env == Production && c.SSLMode == "disable" {
		return &ValidationError{Field: "SSLMode", Message: "SSL cannot be disabled in production"}
	}

	return nil
}

// validatePassword applies the stricter production rules on top of the
// non-empty check.
func validatePassword(field, password string, env Environment) error {
	if password == "" {
		return &ValidationError{Field: field, Message: "password cannot be empty"}
	}
	if env != Production {
		return nil
	}

	if len(password) < 12 {
		return &ValidationError{Field: field, Message: "password must be at least 12 characters long in production"}
	}
	rules := []struct {
		pattern *regexp.Regexp
		message string
	}{
		{upperPattern, "password must contain at least one uppercase letter in production"},
		{lowerPattern, "password must contain at least one lowercase letter in production"},
		{digitPattern, "password must contain at least one number in production"},
		{symbolPattern, "password must contain at least one special character in production"},
	}
	for _, rule := range rules {
		if !rule.pattern.MatchString(password) {
			return &ValidationError{Field: field, Message: rule.message}
		}
	}
	return nil
}

// validateSecretSchema validates the structure of secrets stored in AWS Secrets Manager
func validateSecretSchema(secrets map[string]string, env Environment) error {
	requiredKeys := []string{
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_SSLMODE",
	}

	for _, key := range requiredKeys {
		if _, ok := secrets[key]; !ok {
			return &ValidationError{
				Field:   key,
				Message: "required secret key not found",
			}
		}
	}

	if _, err := strconv.Atoi(secrets["DB_PORT"]); err != nil {
		return &ValidationError{
			Field:   "DB_PORT",
			Message: "port must be a valid number",
		}
	}

	if !validSSLModes[secrets["DB_SSLMODE"]] {
		return &ValidationError{
			Field:   "DB_SSLMODE",
			Message: "invalid SSL mode",
		}
	}

	if env == Production {
		if strings.EqualFold(secrets["DB_HOST"], "localhost") {
			return &ValidationError{
				Field:   "DB_HOST",
				Message: "localhost is not allowed in production",
			}
		}
		if secrets["DB_SSLMODE"] == "disable" {
			return &ValidationError{
				Field:   "DB_SSLMODE",
				Message: "SSL cannot be disabled in production",
			}
		}
	}

	return validatePassword("DB_PASSWORD", secrets["DB_PASSWORD"], env)
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{
		Driver: stringOr(ctx, provider, "DB_DRIVER", DriverPostgres),
	}

	switch cfg.Driver {
	case DriverSQLite:
		cfg.SQLitePath = stringOr(ctx, provider, "SQLITE_PATH", defaultSQLitePath())
	case DriverPostgres:
		if err := loadPostgresConfig(ctx, provider, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg, nil
}

func loadPostgresConfig(ctx context.Context, provider Provider, cfg *DatabaseConfig) error {
	var err error
	if cfg.Host, err = provider.GetString(ctx, "DB_HOST"); err != nil {
		return fmt.Errorf("failed to get DB_HOST: %w", err)
	}
	if cfg.Port, err = provider.GetInt(ctx, "DB_PORT"); err != nil {
		return fmt.Errorf("failed to get DB_PORT: %w", err)
	}
	if cfg.User, err = provider.GetString(ctx, "DB_USER"); err != nil {
		return fmt.Errorf("failed to get DB_USER: %w", err)
	}
	if cfg.Password, err = provider.GetSecret(ctx, "DB_PASSWORD"); err != nil {
		return fmt.Errorf("failed to get DB_PASSWORD: %w", err)
	}
	if cfg.DBName, err = provider.GetString(ctx, "DB_NAME"); err != nil {
		return fmt.Errorf("failed to get DB_NAME: %w", err)
	}
	cfg.SSLMode = stringOr(ctx, provider, "DB_SSLMODE", "disable")
	return nil
}

func defaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".categories", "categories.db")
}

// CacheConfig holds the tree cache configuration
type CacheConfig struct {
	Provider      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoDBTable string
	TTL           time.Duration
}

// Validate checks if the cache configuration is valid
func (c *CacheConfig) Validate() error {
	switch c.Provider {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return &ValidationError{Field: "RedisAddr", Message: "redis address cannot be empty"}
		}
	case CacheDynamoDB:
		if c.DynamoDBTable == "" {
			return &ValidationError{Field: "DynamoDBTable", Message: "dynamodb table cannot be empty"}
		}
	default:
		return &ValidationError{Field: "Provider", Message: fmt.Sprintf("unknown cache provider %q", c.Provider)}
	}
	if c.TTL <= 0 {
		return &ValidationError{Field: "TTL", Message: "ttl must be positive"}
	}
	return nil
}

// GetCacheConfig retrieves cache configuration using the provided config provider
func GetCacheConfig(ctx context.Context, provider Provider) (*CacheConfig, error) {
	cfg := &CacheConfig{
		Provider:      stringOr(ctx, provider, "CACHE_PROVIDER", CacheMemory),
		RedisAddr:     fmt.Sprintf("%s:%s", stringOr(ctx, provider, "REDIS_HOST", "localhost"), stringOr(ctx, provider, "REDIS_PORT", "6379")),
		RedisPassword: stringOr(ctx, provider, "REDIS_PASSWORD", ""),
		RedisDB:       intOr(ctx, provider, "REDIS_DB", 0),
		DynamoDBTable: stringOr(ctx, provider, "CACHE_TABLE", "CategoryTreeCache"),
		TTL:           time.Duration(intOr(ctx, provider, "CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}
	return cfg, nil
}

// ServerConfig holds the HTTP server and logging configuration
type ServerConfig struct {
	Port     int
	LogLevel string
}

// GetServerConfig retrieves server configuration using the provided config provider
func GetServerConfig(ctx context.Context, provider Provider) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:     intOr(ctx, provider, "PORT", 8080),
		LogLevel: stringOr(ctx, provider, "LOG_LEVEL", "info"),
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	}
	return cfg, nil
}

func stringOr(ctx context.Context, provider Provider, key, fallback string) string {
	value, err := provider.GetString(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

func intOr(ctx context.Context, provider Provider, key string, fallback int) int {
	value, err := provider.GetInt(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}
