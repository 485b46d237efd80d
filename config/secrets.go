package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var ErrMissingCredential = errors.New("missing credential")

// SecretsAPI is the part of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var newSecretsClient = func(ctx context.Context, region string) (SecretsAPI, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// EmbeddingKey returns the embedding service API key.
func (c *Config) EmbeddingKey(ctx context.Context) (string, error) {
	return c.secret(ctx, c.Embedding.APIKeyEnv, c.Secrets.AWS.OpenAISecretID)
}

// IndexKey returns the vector index service API key.
func (c *Config) IndexKey(ctx context.Context) (string, error) {
	return c.secret(ctx, c.Index.APIKeyEnv, c.Secrets.AWS.PineconeSecretID)
}

func (c *Config) secret(ctx context.Context, envName, secretID string) (string, error) {
	if c.Secrets.Source != "aws" {
		value := os.Getenv(envName)
		if value == "" {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrMissingCredential, envName)
		}
		return value, nil
	}

	client, err := newSecretsClient(ctx, c.Secrets.AWS.Region)
	if err != nil {
		return "", err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", secretID, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("%w: secret %s is empty", ErrMissingCredential, secretID)
	}
	return *out.SecretString, nil
}
