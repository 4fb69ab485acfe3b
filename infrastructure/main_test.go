package main

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mocks struct {
	mu    sync.Mutex
	types map[string]string
}

func (m *mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.types[args.Name] = args.TypeToken
	m.mu.Unlock()

	outputs := args.Inputs.Copy()
	switch args.TypeToken {
	case "aws:ec2/eip:Eip":
		outputs["publicIp"] = resource.NewStringProperty("203.0.113.10")
		outputs["allocationId"] = resource.NewStringProperty("eipalloc-0abc")
	case "aws:s3/bucket:Bucket":
		outputs["arn"] = resource.NewStringProperty("arn:aws:s3:::" + args.Inputs["bucket"].StringValue())
	case "aws:ec2/keyPair:KeyPair":
		outputs["keyPairId"] = resource.NewStringProperty("key-0abc")
	case "aws:iam/role:Role", "aws:iam/instanceProfile:InstanceProfile":
		outputs["name"] = resource.NewStringProperty(args.Name)
	}
	return args.Name + "_id", outputs, nil
}

func (m *mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	switch args.Token {
	case "aws:index/getAvailabilityZones:getAvailabilityZones":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"names": []string{"ap-northeast-1a", "ap-northeast-1c"},
		}), nil
	case "aws:route53/getZone:getZone":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"zoneId": "Z0123456789ABC",
			"name":   args.Args["name"].StringValue(),
		}), nil
	}
	return args.Args, nil
}

func setConfig(t *testing.T, values map[string]string) {
	t.Helper()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	t.Setenv("PULUMI_CONFIG", string(data))
}

func sampleConfig() map[string]string {
	return map[string]string{
		"sakura:accountId":          "643093502804",
		"sakura:region":             "ap-northeast-1",
		"sakura:keyName":            "sakura-key",
		"sakura:createKeyPair":      "true",
		"sakura:enableDns":          "true",
		"sakura:enableHttpFirewall": "true",
		"sakura:firewall":           `[{"port":22,"label":"Allow SSH Access"},{"port":8090,"label":"Allow Pocketbase Access"}]`,
		"sakura:bucket":             `{"name":"pb-backup-sakura-bucket"}`,
		"sakura:instance":           `{"instanceType":"t2.micro","image":{"amiId":"ami-0123456789abcdef0"},"bootCommands":["yum update -y"]}`,
		"sakura:dns":                `{"zoneName":"a.read-dx.com","recordName":"sakura"}`,
	}
}

func TestRun(t *testing.T) {
	setConfig(t, sampleConfig())
	m := &mocks{types: map[string]string{}}

	err := pulumi.RunErr(run, pulumi.WithMocks("sakura", "dev", m))
	require.NoError(t, err)

	assert.Equal(t, "aws:ec2/eip:Eip", m.types["sakura-elastic-ip"])
	assert.Equal(t, "aws:route53/record:Record", m.types["sakura-dns-record"])
	assert.Equal(t, "aws:ssm/parameter:Parameter", m.types["sakura-ssh-key-param"])
}

func TestRun_MissingConfig(t *testing.T) {
	cfg := sampleConfig()
	delete(cfg, "sakura:accountId")
	setConfig(t, cfg)
	m := &mocks{types: map[string]string{}}

	err := pulumi.RunErr(run, pulumi.WithMocks("sakura", "dev", m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sakura:accountId is required")
	assert.NotContains(t, m.types, "sakura-vpc")
}
