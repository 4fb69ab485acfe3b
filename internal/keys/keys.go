// Package keys retrieves SSH private keys that EC2 stored in SSM Parameter
// Store when the key pair was created.
package keys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterPrefix is where EC2 keeps private keys of generated key pairs.
const ParameterPrefix = "/ec2/keypair/"

// ParameterName returns the SSM parameter holding the private key of keyPairID.
func ParameterName(keyPairID string) string {
	return ParameterPrefix + keyPairID
}

// ErrNotFound is returned when no parameter exists for the key pair.
var ErrNotFound = errors.New("private key parameter not found")

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Fetcher reads private key material from Parameter Store.
type Fetcher struct {
	SSM SSMAPI
}

func NewFetcher(cfg aws.Config) *Fetcher {
	return &Fetcher{SSM: ssm.NewFromConfig(cfg)}
}

// Fetch returns the decrypted private key of keyPairID.
func (f *Fetcher) Fetch(ctx context.Context, keyPairID string) (string, error) {
	if keyPairID == "" {
		return "", errors.New("key pair id is required")
	}
	name := ParameterName(keyPairID)
	out, err := f.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// WriteFile stores key material at path readable by the owner only. An
// existing file is replaced.
func WriteFile(path, material string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if material != "" && material[len(material)-1] != '\n' {
		material += "\n"
	}
	if err := os.WriteFile(path, []byte(material), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, 0o600)
}
