package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const secretsTimeout = 15 * time.Second

// resolveAWSSecretsManager reads a secret by name or ARN. A reference of
// the form name#field treats the secret as a JSON document and returns
// one field, which is how RDS credentials are stored.
func resolveAWSSecretsManager(ref string) (string, error) {
	id, field, _ := strings.Cut(ref, "#")
	if id == "" {
		return "", fmt.Errorf("invalid AWS Secrets Manager reference %q", ref)
	}

	ctx, cancel := context.WithTimeout(context.Background(), secretsTimeout)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}
	out, err := secretsmanager.NewFromConfig(cfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", id)
	}
	return secretValue(aws.ToString(out.SecretString), id, field)
}

// secretValue returns raw, or one field of it when field is set.
func secretValue(raw, id, field string) (string, error) {
	if field == "" {
		return raw, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("secret %q is not a JSON document: %w", id, err)
	}
	return secretField(doc, field, "secret "+id)
}
