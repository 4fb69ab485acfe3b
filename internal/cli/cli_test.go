package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/keys"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/preflight"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/stack"
)

type fakeRunner struct {
	report preflight.Report
	err    error
	got    stack.Params
}

func (f *fakeRunner) Run(_ context.Context, p stack.Params) (preflight.Report, error) {
	f.got = p
	return f.report, f.err
}

type fakeFetcher struct {
	material string
	err      error
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	return f.material, f.err
}

// stubAWS replaces the AWS wiring for one test and records the region used.
func stubAWS(t *testing.T) *string {
	t.Helper()
	var used string
	origLoad, origChecker, origFetcher := loadAWSConfig, newChecker, newFetcher
	loadAWSConfig = func(_ context.Context, r string) (aws.Config, error) {
		used = r
		return aws.Config{Region: r}, nil
	}
	t.Cleanup(func() {
		loadAWSConfig, newChecker, newFetcher = origLoad, origChecker, origFetcher
		region = ""
	})
	return &used
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const stackConfig = `config:
  sakura:accountId: "643093502804"
  sakura:region: ap-northeast-1
  sakura:keyName: sakura-key
  sakura:bucket:
    name: pb-backup-sakura-bucket
  sakura:instance:
    instanceType: t2.micro
    image:
      amiId: ami-0123456789abcdef0
`

func writeStackConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Pulumi.dev.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPreflight_Passes(t *testing.T) {
	used := stubAWS(t)
	runner := &fakeRunner{report: preflight.Report{Findings: []preflight.Finding{
		{Check: "account", Detail: "643093502804"},
		{Check: "key pair", Detail: "key-0abc"},
	}}}
	newChecker = func(aws.Config) preflightRunner { return runner }

	out, err := execute(t, "preflight", "--config", writeStackConfig(t, stackConfig))
	require.NoError(t, err)

	assert.Equal(t, "ap-northeast-1", *used)
	assert.Equal(t, "pb-backup-sakura-bucket", runner.got.Bucket.Name)
	assert.Contains(t, out, "OK    account")
	assert.Contains(t, out, "All checks passed.")
}

func TestPreflight_RegionFlagWins(t *testing.T) {
	used := stubAWS(t)
	newChecker = func(aws.Config) preflightRunner { return &fakeRunner{} }

	_, err := execute(t, "preflight", "--region", "us-west-2", "--config", writeStackConfig(t, stackConfig))
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", *used)
}

func TestPreflight_ReportsFailures(t *testing.T) {
	stubAWS(t)
	notFound := &stack.ReferenceNotFoundError{Kind: "key pair", Name: "sakura-key"}
	newChecker = func(aws.Config) preflightRunner {
		return &fakeRunner{
			report: preflight.Report{Findings: []preflight.Finding{
				{Check: "account", Detail: "643093502804"},
				{Check: "key pair", Err: notFound},
			}},
			err: notFound,
		}
	}

	out, err := execute(t, "preflight", "--config", writeStackConfig(t, stackConfig))
	require.Error(t, err)

	var target *stack.ReferenceNotFoundError
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "1 of 2 checks")
	assert.Contains(t, out, "FAIL  key pair")
}

func TestPreflight_InvalidConfig(t *testing.T) {
	stubAWS(t)
	called := false
	newChecker = func(aws.Config) preflightRunner {
		called = true
		return &fakeRunner{}
	}

	_, err := execute(t, "preflight", "--config", writeStackConfig(t, "config:\n  sakura:region: ap-northeast-1\n"))
	var ve *stack.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "accountId", ve.Field)
	assert.False(t, called)
}

func TestSSHKey_WritesFile(t *testing.T) {
	stubAWS(t)
	newFetcher = func(aws.Config) keyFetcher { return &fakeFetcher{material: "private"} }
	path := filepath.Join(t.TempDir(), "sakura.pem")

	out, err := execute(t, "ssh-key", "--key-pair-id", "key-0abc", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "private\n", string(data))
}

func TestSSHKey_NotFound(t *testing.T) {
	stubAWS(t)
	newFetcher = func(aws.Config) keyFetcher { return &fakeFetcher{err: keys.ErrNotFound} }

	_, err := execute(t, "ssh-key", "--key-pair-id", "key-0abc", "--out", filepath.Join(t.TempDir(), "k.pem"))
	require.Error(t, err)
	assert.ErrorIs(t, err, keys.ErrNotFound)
	assert.Contains(t, err.Error(), "createKeyPair")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sakuractl version dev")
}
