package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/logging"
)

var (
	region   string
	profile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sakuractl",
	Short: "Operator tooling for the sakura Pocketbase stack",
	Long: `sakuractl works alongside the sakura Pulumi program.

It checks a stack configuration against the live AWS account before
"pulumi up" and retrieves the SSH private key of a generated key pair.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (defaults to the SDK's resolution)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "shared config profile")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(preflightCmd)
	rootCmd.AddCommand(sshKeyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadAWSConfig is replaced in tests.
var loadAWSConfig = func(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
