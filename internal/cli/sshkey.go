package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/keys"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/logging"
)

type keyFetcher interface {
	Fetch(ctx context.Context, keyPairID string) (string, error)
}

var newFetcher = func(cfg aws.Config) keyFetcher {
	return keys.NewFetcher(cfg)
}

var (
	keyPairID string
	keyOut    string
)

var sshKeyCmd = &cobra.Command{
	Use:   "ssh-key",
	Short: "Write the private key of a generated key pair to a file",
	Long: `Reads /ec2/keypair/<key-pair-id> from SSM Parameter Store with decryption
and writes it with mode 0600. The key pair id is the keyPairId of the stack's
key pair, shown in the getSshKeyCommand output.`,
	Example: `  sakuractl ssh-key --key-pair-id key-0a1b2c3d4e5f67890 --out ~/.ssh/sakura.pem`,
	RunE:    runSSHKey,
}

func init() {
	sshKeyCmd.Flags().StringVar(&keyPairID, "key-pair-id", "", "id of the EC2 key pair (required)")
	sshKeyCmd.Flags().StringVarP(&keyOut, "out", "o", "sakura.pem", "file to write the private key to")
	_ = sshKeyCmd.MarkFlagRequired("key-pair-id")
}

func runSSHKey(cmd *cobra.Command, args []string) error {
	cfg, err := loadAWSConfig(cmd.Context(), region)
	if err != nil {
		return err
	}

	material, err := newFetcher(cfg).Fetch(cmd.Context(), keyPairID)
	if errors.Is(err, keys.ErrNotFound) {
		return fmt.Errorf("%w (was the key pair created by the stack with createKeyPair?)", err)
	}
	if err != nil {
		return err
	}

	if err := keys.WriteFile(keyOut, material); err != nil {
		return err
	}
	logging.Component("ssh-key").Info("wrote private key", "key_pair_id", keyPairID, "path", keyOut)
	fmt.Fprintf(cmd.OutOrStdout(), "Private key written to %s\n", keyOut)
	return nil
}
