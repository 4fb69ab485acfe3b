package stack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// IdentityResources holds the instance role and its profile
type IdentityResources struct {
	Role            *iam.Role
	BucketPolicy    *iam.RolePolicy
	Attachments     []*iam.RolePolicyAttachment
	InstanceProfile *iam.InstanceProfile
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    interface{}       `json:"Action"`
	Principal map[string]string `json:"Principal,omitempty"`
	Resource  interface{}       `json:"Resource,omitempty"`
}

// AssumeRolePolicy is the trust policy letting service assume the role.
func AssumeRolePolicy(service string) string {
	doc, _ := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Action:    "sts:AssumeRole",
			Principal: map[string]string{"Service": service},
		}},
	})
	return string(doc)
}

// BucketAccessPolicy grants actions on the bucket and on every object in it.
func BucketAccessPolicy(bucketArn string, actions []string) string {
	doc, _ := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   actions,
			Resource: []string{bucketArn, bucketArn + "/*"},
		}},
	})
	return string(doc)
}

// createIdentityResources creates the role the instance runs as. Bucket
// access comes from one inline policy scoped to the backup bucket.
func (b *builder) createIdentityResources(storage *StorageResources) (*IdentityResources, error) {
	spec := b.p.Role
	bucketName := b.name("backup-bucket")

	roleName := b.name("ec2-role")
	role, err := iam.NewRole(b.ctx, roleName, &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(AssumeRolePolicy(spec.TrustedService)),
		Tags:             b.tags(roleName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(roleName, err)
	}
	b.graph.add(Node{Name: roleName, Kind: KindRole})

	actions := append([]string{}, spec.BucketActions...)
	policyName := b.name("backup-bucket-access")
	bucketPolicy, err := iam.NewRolePolicy(b.ctx, policyName, &iam.RolePolicyArgs{
		Role: role.Name,
		Policy: storage.Bucket.Arn.ApplyT(func(arn string) string {
			return BucketAccessPolicy(arn, actions)
		}).(pulumi.StringOutput),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(policyName, err)
	}
	b.graph.add(Node{Name: policyName, Kind: KindRolePolicy, DependsOn: []string{roleName, bucketName}})

	res := &IdentityResources{
		Role:         role,
		BucketPolicy: bucketPolicy,
	}

	for i, arn := range spec.ManagedPolicyArns {
		if broadS3Policy(arn) {
			_ = b.ctx.Log.Warn(fmt.Sprintf("%s grants S3 access beyond the backup bucket; review before keeping it", arn), nil)
		}

		attachName := b.name(fmt.Sprintf("ec2-managed-policy-%d", i+1))
		attachment, err := iam.NewRolePolicyAttachment(b.ctx, attachName, &iam.RolePolicyAttachmentArgs{
			Role:      role.Name,
			PolicyArn: pulumi.String(arn),
		}, b.opts()...)
		if err != nil {
			return nil, provisionErr(attachName, err)
		}
		b.graph.add(Node{Name: attachName, Kind: KindRolePolicyAttachment, DependsOn: []string{roleName}})
		res.Attachments = append(res.Attachments, attachment)
	}

	profileName := b.name("instance-profile")
	profile, err := iam.NewInstanceProfile(b.ctx, profileName, &iam.InstanceProfileArgs{
		Role: role.Name,
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(profileName, err)
	}
	b.graph.add(Node{Name: profileName, Kind: KindInstanceProfile, DependsOn: []string{roleName}})
	res.InstanceProfile = profile

	return res, nil
}

func broadS3Policy(arn string) bool {
	return strings.HasSuffix(arn, ":policy/AmazonS3FullAccess")
}
