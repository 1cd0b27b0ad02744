// Package config defines the global configuration structure for the linkdrain
// platform. Configuration is loaded once at process initialization (Lambda
// cold start) and is immutable thereafter. Values come from the OS
// environment, optionally seeded from a dotenv file for local runs; any
// missing required value or invalid format fails the load immediately.
package config

import "time"

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"dev" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"linkdrain"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	AWS       AWSConfig
	Database  DatabaseConfig
	Results   ResultsConfig
	Shortener ShortenerConfig
	Drain     DrainConfig
}

// ServerConfig holds the local ops gateway settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Resource identifiers
	JobsBucket       string `envconfig:"JOBS_BUCKET" validate:"required"`
	ShortenQueueURL  string `envconfig:"SQS_SHORTEN" validate:"required,url"`
	FinalizeQueueURL string `envconfig:"SQS_FINALIZE" validate:"required,url"`
	DrainTargetArn   string `envconfig:"DRAIN_TARGET_ARN" validate:"required"`
	DrainTargetRole  string `envconfig:"DRAIN_TARGET_ROLE_ARN" validate:"required"`
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"LinkDrain"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// DatabaseConfig holds the job registry connection settings.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// ResultsConfig holds the result store connection settings.
type ResultsConfig struct {
	RedisAddr     string `envconfig:"REDIS_ADDR" validate:"required"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ShortenerConfig holds the external shortening API settings.
type ShortenerConfig struct {
	BaseURL       string        `envconfig:"SHORTENER_BASE_URL" default:"https://api-ssl.bitly.com" validate:"required,url"`
	Token         string        `envconfig:"SHORTENER_TOKEN" validate:"required"`
	DefaultDomain string        `envconfig:"SHORTENER_DEFAULT_DOMAIN" default:"bit.ly"`
	Timeout       time.Duration `envconfig:"SHORTENER_TIMEOUT" default:"10s"`
}

// DrainConfig holds drain pipeline tuning.
type DrainConfig struct {
	// GzipArtifact writes the final artifact gzip-compressed.
	GzipArtifact bool `envconfig:"ARTIFACT_GZIP" default:"false"`
	// DispatchConcurrency caps concurrent SQS sends within one tick.
	DispatchConcurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"16"`
}
