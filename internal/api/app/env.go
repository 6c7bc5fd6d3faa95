package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// LoadEnv fills the environment from AWS Secrets Manager (when AWS_SECRET_NAME
// is set) and then from .env.{ENV} and .env. Variables already present in the
// environment always win.
func LoadEnv() {
	if err := loadAWSSecretsIntoEnv(context.Background()); err != nil {
		slog.Warn("skipping AWS Secrets Manager load", "error", err)
	}
	loadDotEnv()
}

func loadDotEnv() {
	var files []string
	if env := strings.TrimSpace(os.Getenv("ENV")); env != "" {
		files = append(files, ".env."+env)
	}
	files = append(files, ".env")

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set, so
		// the first file wins for duplicated keys.
		if err := godotenv.Load(f); err != nil {
			slog.Warn("failed to load env file", "file", f, "error", err)
		}
	}
}

func loadAWSSecretsIntoEnv(ctx context.Context) error {
	secretID := os.Getenv("AWS_SECRET_NAME")
	if secretID == "" {
		return nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	output, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload []byte
	switch {
	case output.SecretString != nil:
		payload = []byte(*output.SecretString)
	case len(output.SecretBinary) > 0:
		payload = output.SecretBinary
	default:
		return fmt.Errorf("secret %s has no payload", secretID)
	}

	applied, err := applySecretJSON(payload)
	if err != nil {
		return fmt.Errorf("secret %s: %w", secretID, err)
	}
	slog.Info("loaded env vars from AWS Secrets Manager", "secret", secretID, "applied", applied)
	return nil
}

// applySecretJSON sets every key of a flat JSON object that is not already
// in the environment.
func applySecretJSON(payload []byte) (int, error) {
	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err != nil {
		return 0, fmt.Errorf("parsing secret as JSON: %w", err)
	}

	applied := 0
	for key, val := range kv {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return applied, fmt.Errorf("setting env %s from secret: %w", key, err)
		}
		applied++
	}
	return applied, nil
}
