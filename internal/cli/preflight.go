package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/logging"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/preflight"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/settings"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/stack"
)

type preflightRunner interface {
	Run(ctx context.Context, p stack.Params) (preflight.Report, error)
}

var newChecker = func(cfg aws.Config) preflightRunner {
	return preflight.NewChecker(cfg)
}

var preflightConfig string

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check a stack configuration against the AWS account",
	Long: `Loads Pulumi.<stack>.yaml, validates it and checks every external
reference it names: caller account, key pair, hosted zone and bucket name.
Nothing is created or modified.`,
	RunE: runPreflight,
}

func init() {
	preflightCmd.Flags().StringVarP(&preflightConfig, "config", "c", "Pulumi.dev.yaml", "path to the Pulumi stack config file")
}

func runPreflight(cmd *cobra.Command, args []string) error {
	src, err := settings.ReadStackFile(preflightConfig, settings.Namespace)
	if err != nil {
		return err
	}
	params, err := settings.Load(src)
	if err != nil {
		return err
	}

	// The stack's own region wins over the SDK default
	r := region
	if r == "" {
		r = params.Region
	}
	cfg, err := loadAWSConfig(cmd.Context(), r)
	if err != nil {
		return err
	}

	logging.Info("running preflight", "stack", params.Name, "account", params.AccountID, "region", r)
	report, err := newChecker(cfg).Run(cmd.Context(), params)
	printReport(cmd.OutOrStdout(), report)
	if err != nil {
		return fmt.Errorf("preflight failed: %d of %d checks: %w", len(report.Failed()), len(report.Findings), err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nAll checks passed.")
	return nil
}

func printReport(w io.Writer, report preflight.Report) {
	for _, f := range report.Findings {
		status, detail := "OK  ", f.Detail
		if f.Err != nil {
			status, detail = "FAIL", f.Err.Error()
		}
		fmt.Fprintf(w, "%s  %-12s %s\n", status, f.Check, detail)
	}
}
