package stack

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ssm"
	"github.com/pulumi/pulumi-tls/sdk/v4/go/tls"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/keys"
)

// KeyResources holds the SSH key pair reference. PrivateKey, KeyPair and
// Parameter are nil when the key pair already existed.
type KeyResources struct {
	PrivateKey *tls.PrivateKey
	KeyPair    *ec2.KeyPair
	Parameter  *ssm.Parameter
	KeyName    pulumi.StringOutput
	KeyPairID  pulumi.StringOutput
	// node is the graph node the instance depends on, empty for a lookup
	node string
}

// createKeyResources either generates the key pair in-graph, storing the
// private half in SSM under /ec2/keypair/<id>, or resolves an existing one
func (b *builder) createKeyResources() (*KeyResources, error) {
	keyName := b.p.Key.Name

	if !b.p.CreateKeyPair {
		existing, err := ec2.LookupKeyPair(b.ctx, &ec2.LookupKeyPairArgs{
			KeyName: pulumi.StringRef(keyName),
		}, b.invokeOpts()...)
		if err != nil {
			return nil, &ReferenceNotFoundError{Kind: "key pair", Name: keyName, Cause: err}
		}
		return &KeyResources{
			KeyName:   pulumi.String(keyName).ToStringOutput(),
			KeyPairID: pulumi.String(existing.Id).ToStringOutput(),
		}, nil
	}

	privateKeyName := b.name("ssh-key")
	privateKey, err := tls.NewPrivateKey(b.ctx, privateKeyName, &tls.PrivateKeyArgs{
		Algorithm: pulumi.String("RSA"),
		RsaBits:   pulumi.Int(4096),
	})
	if err != nil {
		return nil, provisionErr(privateKeyName, err)
	}
	b.graph.add(Node{Name: privateKeyName, Kind: KindPrivateKey})

	keyPairName := b.name("key-pair")
	keyPair, err := ec2.NewKeyPair(b.ctx, keyPairName, &ec2.KeyPairArgs{
		KeyName:   pulumi.String(keyName),
		PublicKey: privateKey.PublicKeyOpenssh,
		Tags:      b.tags(keyName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(keyPairName, err)
	}
	b.graph.add(Node{Name: keyPairName, Kind: KindKeyPair, DependsOn: []string{privateKeyName}})

	paramName := b.name("ssh-key-param")
	param, err := ssm.NewParameter(b.ctx, paramName, &ssm.ParameterArgs{
		Name: keyPair.KeyPairId.ApplyT(func(id string) string {
			return keys.ParameterName(id)
		}).(pulumi.StringOutput),
		Type:        pulumi.String("SecureString"),
		Value:       privateKey.PrivateKeyOpenssh,
		Description: pulumi.String(fmt.Sprintf("Private key of EC2 key pair %s", keyName)),
		Tags:        b.tags(paramName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(paramName, err)
	}
	b.graph.add(Node{Name: paramName, Kind: KindParameter, DependsOn: []string{keyPairName, privateKeyName}})

	return &KeyResources{
		PrivateKey: privateKey,
		KeyPair:    keyPair,
		Parameter:  param,
		KeyName:    keyPair.KeyName,
		KeyPairID:  keyPair.KeyPairId,
		node:       keyPairName,
	}, nil
}

// SSHKeyCommand is the AWS CLI invocation that prints the private key.
func SSHKeyCommand(keyPairID, region string) string {
	return fmt.Sprintf("aws ssm get-parameter --name %s --region %s --with-decryption --query Parameter.Value --output text",
		keys.ParameterName(keyPairID), region)
}

func sshKeyCommandOutput(keyPairID pulumi.StringOutput, region string) pulumi.StringOutput {
	return keyPairID.ApplyT(func(id string) string {
		return SSHKeyCommand(id, region)
	}).(pulumi.StringOutput)
}
