// Package mainconfig holds SDK wiring shared by the binaries.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	appconfig "github.com/wolfman30/healthvoice-triage/internal/config"
)

// NewBedrockClient returns a Bedrock runtime client for the configured
// region. BedrockEndpointURL points the client at a proxy or local emulator.
func NewBedrockClient(ctx context.Context, cfg *appconfig.Config) (*bedrockruntime.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, "bedrock")
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSpace(cfg.BedrockEndpointURL)
	return bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewSESClient returns an SES v2 client for booking e-mail.
func NewSESClient(ctx context.Context, cfg *appconfig.Config) (*sesv2.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, "ses")
	if err != nil {
		return nil, err
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

// loadAWSConfig resolves region and credentials. Explicit keys take
// precedence over the default credential chain.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config, service string) (aws.Config, error) {
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		return aws.Config{}, fmt.Errorf("mainconfig: AWS region is required for %s", service)
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	return awsCfg, nil
}
